package render

import (
	"fmt"
	"strings"
	"time"

	"sectbot/internal/ledger"
)

// Per-block and per-message limits for leaderboard rendering. Blocks are
// kept under blockCharLimit so they never hit the platform's 1024-character
// field cap; maxRankingBlocks leaves room for the statistics block inside
// the 25-field message cap.
const (
	blockCharLimit   = 950
	maxRankingBlocks = 20
	usernameDisplay  = 15 // shown runes per name, ellipsis included
)

// Embed is the structured content handed to the render collaborator. The
// core only fills it in; it never produces raw markup.
type Embed struct {
	Title       string
	Description string
	Color       int
	Timestamp   time.Time
	Fields      []Field
	Footer      string
	FooterIcon  string
	Thumbnail   string
}

// Field is one embed section.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

func (e *Embed) addField(name, value string, inline bool) {
	e.Fields = append(e.Fields, Field{Name: name, Value: value, Inline: inline})
}

// LeaderboardEmbed renders one leaderboard page. titleFor resolves each
// row's rank title; it may fall back to a point-only title when the member's
// roles are unknown.
func LeaderboardEmbed(page *ledger.Page, guildName string, totalGuildPoints int64, titleFor func(ledger.Row) string) Embed {
	embed := Embed{
		Title:     "Heavenly Demon Sect Leaderboard",
		Color:     ColorPrimary,
		Timestamp: time.Now(),
	}

	if page == nil || len(page.Rows) == 0 {
		embed.addField(
			"No Data Available",
			"The leaderboard is currently empty.\nMembers will appear here as they gain contribution points.",
			false,
		)
		return embed
	}

	header := "**Cultivation Leaderboard**\n" + guildName + "\n"
	if totalGuildPoints > 0 {
		header += "Total Sect Contribution: **" + FormatLargeNumber(totalGuildPoints) + "**\n"
	}
	header += fmt.Sprintf("Page %d of %d • Showing the members of the Heavenly Demon Sect.", page.Page, page.TotalPages)
	embed.Description = header

	blocks := []string{""}
	current := 0

	for _, row := range page.Rows {
		name := TruncateText(row.Username, usernameDisplay)
		entry := fmt.Sprintf("%s %s - %s pts • %s\n", Ordinal(row.Rank), name, formatThousands(row.Points), titleFor(row))

		if len(blocks[current])+len(entry) > blockCharLimit {
			if current+1 >= maxRankingBlocks {
				break
			}
			blocks = append(blocks, entry)
			current++
		} else {
			blocks[current] += entry
		}
	}

	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		embed.addField("​", block, false)
	}

	pageTotal := int64(0)
	for _, row := range page.Rows {
		pageTotal += int64(row.Points)
	}
	stats := "**Page Total:** " + FormatLargeNumber(pageTotal) + "\n"
	stats += fmt.Sprintf("**Page:** %d/%d\n", page.Page, page.TotalPages)
	stats += fmt.Sprintf("**Members on Page:** %d", len(page.Rows))
	embed.addField("Statistics", stats, true)

	embed.Footer = fmt.Sprintf("Heavenly Demon Sect • Page %d/%d • Use buttons to navigate", page.Page, page.TotalPages)
	return embed
}

// UserStatsEmbed renders a member's cultivation profile card. profile may be
// nil; next describes the advancement section when a next rank exists.
func UserStatsEmbed(username string, stats *ledger.Stats, profile *ledger.Profile, rankTitle string, nextThreshold int, nextTitle string, hasNext bool, statusMessage, guildName, avatarURL string) Embed {
	color := RankColor(rankTitle)
	title := username + "'s Cultivation Profile"

	if profile != nil {
		if c, ok := parseHexColor(profile.PreferredColor); ok {
			color = c
		}
		if profile.CustomTitle != "" {
			title = profile.CustomTitle + " - " + username
		}
	}

	embed := Embed{
		Title:     title,
		Color:     color,
		Timestamp: time.Now(),
		Thumbnail: avatarURL,
	}

	main := "**Contribution Points:** " + FormatLargeNumber(int64(stats.Points)) + "\n"
	main += "**Current Rank:** " + rankTitle + "\n"
	main += "**Leaderboard Position:** " + Ordinal(stats.Rank) + "\n"
	main += "**Member Since:** " + stats.CreatedAt.Format("2006-01-02")
	embed.addField("Cultivation Status", main, false)

	if profile != nil && profile.StatusMessage != "" {
		embed.addField("Personal Motto", "*"+profile.StatusMessage+"*", false)
	}

	if hasNext {
		needed := nextThreshold - stats.Points
		if needed < 0 {
			needed = 0
		}
		progress := "**Next Rank:** " + nextTitle + "\n"
		progress += fmt.Sprintf("**Points Needed:** %d\n", needed)
		progress += ProgressBar(stats.Points, nextThreshold, 20)
		embed.addField("Advancement Progress", progress, false)
	} else {
		embed.addField("Current Status", statusMessage, false)
	}

	embed.Footer = "Heavenly Demon Sect • " + guildName
	embed.FooterIcon = avatarURL
	return embed
}

// PromotionEmbed renders the congratulation card announced when a member
// crosses a rank threshold.
func PromotionEmbed(username, guildName, oldRank, newRank string, points int, roleName string) Embed {
	embed := Embed{
		Title:       "RANK ADVANCEMENT",
		Description: "**" + username + "** has ascended to a new rank in the Heavenly Demon Sect!",
		Color:       RankColor(newRank),
		Timestamp:   time.Now(),
	}

	embed.addField("Rank Progression", "**Previous Tier:** "+oldRank+"\n**New Tier:** "+newRank, false)

	details := "**Contribution Points:** " + formatThousands(points) + "\n"
	if roleName != "" {
		details += "**New Rank:** " + roleName + "\n"
	}
	details += "**Disciple of HDS:** " + guildName
	embed.addField("Details", details, false)

	embed.addField("Achievement Recognition", achievementMessage(newRank), false)
	embed.Footer = "Heavenly Demon Sect • Continue your cultivation journey!"
	return embed
}

var achievementMessages = map[string]string{
	"Outer Disciple": "You have proven your dedication and begun your true cultivation journey.",
	"Inner Disciple": "Your commitment to the sect has been recognized. Greater opportunities await.",
	"Core Disciple":  "You have achieved elite status within the sect. Your influence grows.",
	"Young Master":   "Your exceptional talent has earned you a prestigious position.",
	"Demon Council":  "You now hold authority over the sect's important decisions.",
	"Supreme Demon":  "Your power and wisdom place you among the sect's highest ranks.",
	"Guardian":       "You are entrusted with protecting the sect's most sacred secrets.",
	"Heavenly Demon": "You have reached the pinnacle of cultivation and authority.",
	"Demon God":      "You transcend mortal limitations and command absolute respect.",
}

func achievementMessage(rank string) string {
	if msg, ok := achievementMessages[rank]; ok {
		return msg
	}
	return "Your advancement brings honor to the Heavenly Demon Sect."
}

// SuccessEmbed builds a standardized success card.
func SuccessEmbed(title, description string, fields ...Field) Embed {
	return Embed{Title: title, Description: description, Color: ColorSuccess, Timestamp: time.Now(), Fields: fields}
}

// ErrorEmbed builds a standardized error card. A non-empty suggestion is
// attached as a corrective field.
func ErrorEmbed(title, description, suggestion string) Embed {
	embed := Embed{Title: title, Description: description, Color: ColorError, Timestamp: time.Now()}
	if suggestion != "" {
		embed.addField("Suggestion", suggestion, false)
	}
	return embed
}

// InfoEmbed builds a standardized informational card.
func InfoEmbed(title, description string, fields ...Field) Embed {
	return Embed{Title: title, Description: description, Color: ColorInfo, Timestamp: time.Now(), Fields: fields}
}

// WarningEmbed builds a standardized warning card.
func WarningEmbed(title, description string, fields ...Field) Embed {
	return Embed{Title: title, Description: description, Color: ColorWarning, Timestamp: time.Now(), Fields: fields}
}

func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatThousands(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func parseHexColor(s string) (int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return 0, false
	}
	var c int
	if _, err := fmt.Sscanf(s, "%06x", &c); err != nil {
		return 0, false
	}
	return c, true
}
