package rank

// Point thresholds for the disciple tiers.
const (
	OuterThreshold = 10
	InnerThreshold = 350
	CoreThreshold  = 750
)

// Tier titles and the rank below all of them.
const (
	Servant       = "Servant"
	OuterDisciple = "Outer Disciple"
	InnerDisciple = "Inner Disciple"
	CoreDisciple  = "Core Disciple"
)

// Tier is one role-gated disciple tier: the member must both meet MinPoints
// and hold one of RoleIDs to carry the title.
type Tier struct {
	Title     string
	MinPoints int
	RoleIDs   []int64
}

// Config is the rank mapping data. Special roles override everything
// regardless of points; Tiers are evaluated highest first.
type Config struct {
	Special map[int64]string
	Tiers   []Tier
}

// DefaultConfig returns the production sect role tables.
func DefaultConfig() *Config {
	return &Config{
		Special: map[int64]string{
			1266143259801948261: "Demon God",
			1281115906717650985: "Heavenly Demon",
			1276607675735736452: "Guardian",
			1304283446016868424: "Supreme Demon",
			1266242655642456074: "Demon Council",
			1390279781827874937: "Young Master",
		},
		Tiers: []Tier{
			{
				Title:     CoreDisciple,
				MinPoints: CoreThreshold,
				RoleIDs:   []int64{1391059979167072286, 1391060071189971075, 1382602945752727613},
			},
			{
				Title:     InnerDisciple,
				MinPoints: InnerThreshold,
				RoleIDs:   []int64{1268528848740290580, 1308823860740624384, 1391059841505689680},
			},
			{
				Title:     OuterDisciple,
				MinPoints: OuterThreshold,
				RoleIDs:   []int64{1389474689818296370, 1266826177163694181, 1308823565881184348},
			},
		},
	}
}

// Resolver maps (points, held roles) to a rank title. It does no I/O; the
// caller supplies the role set it already knows about.
type Resolver struct {
	cfg *Config
}

func NewResolver(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Resolver{cfg: cfg}
}

func hasAny(held []int64, wanted []int64) bool {
	for _, h := range held {
		for _, w := range wanted {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Title resolves the rank title for a member. Special roles win outright,
// then role-gated tiers top-down, then the point-only fallback. The fallback
// deliberately maps both >=750 and >=350 to Inner Disciple, matching the
// sect's published ladder.
func (r *Resolver) Title(points int, roleIDs []int64) string {
	for _, id := range roleIDs {
		if title, ok := r.cfg.Special[id]; ok {
			return title
		}
	}

	for _, tier := range r.cfg.Tiers {
		if points >= tier.MinPoints && hasAny(roleIDs, tier.RoleIDs) {
			return tier.Title
		}
	}

	switch {
	case points >= InnerThreshold:
		return InnerDisciple
	case points >= OuterThreshold:
		return OuterDisciple
	default:
		return Servant
	}
}

// IsSpecial reports whether title is a special-role rank.
func (r *Resolver) IsSpecial(title string) bool {
	for _, t := range r.cfg.Special {
		if t == title {
			return true
		}
	}
	return false
}

// Requirement returns the rank title and point requirement attached to a
// role, if the role is part of the rank mapping. Special roles require 0.
func (r *Resolver) Requirement(roleID int64) (string, int, bool) {
	if title, ok := r.cfg.Special[roleID]; ok {
		return title, 0, true
	}
	for _, tier := range r.cfg.Tiers {
		for _, id := range tier.RoleIDs {
			if id == roleID {
				return tier.Title, tier.MinPoints, true
			}
		}
	}
	return "", 0, false
}

// progression is the fixed point-based ladder walked by Next.
var progression = []struct {
	Title     string
	Threshold int
}{
	{Servant, 0},
	{OuterDisciple, OuterThreshold},
	{InnerDisciple, InnerThreshold},
	{CoreDisciple, CoreThreshold},
}

// Next returns the member's current rank and, when one exists, the threshold
// and title of the next rank on the ladder. Special ranks have no defined
// progression and return ok=false.
func (r *Resolver) Next(points int, roleIDs []int64) (current string, nextThreshold int, nextTitle string, ok bool) {
	current = r.Title(points, roleIDs)
	if r.IsSpecial(current) {
		return current, 0, "", false
	}

	for i, step := range progression {
		if current == step.Title {
			if i+1 < len(progression) {
				return current, progression[i+1].Threshold, progression[i+1].Title, true
			}
			return current, 0, "", false
		}
	}
	return current, 0, "", false
}

// StatusMessage returns the flavor line shown on a member's stats card when
// no further progression applies, tiered by how far into the rank they are.
func (r *Resolver) StatusMessage(points int, roleIDs []int64) string {
	title := r.Title(points, roleIDs)

	if r.IsSpecial(title) {
		return "You hold the prestigious rank of " + title + ". Your authority in the sect is unquestionable."
	}

	switch title {
	case CoreDisciple:
		switch {
		case points >= 1500:
			return "You are a distinguished Core Disciple with exceptional contributions to the sect."
		case points >= 1000:
			return "Your dedication as a Core Disciple is evident through your substantial contributions."
		default:
			return "You have achieved Core Disciple status. Continue your cultivation journey."
		}
	case InnerDisciple:
		if points >= 500 {
			return "You are approaching Core Disciple status. Your progress is commendable."
		}
		return "As an Inner Disciple, you have proven your commitment to the sect."
	case OuterDisciple:
		switch {
		case points >= 200:
			return "You are making excellent progress toward Inner Disciple advancement."
		case points >= 100:
			return "Your contributions are growing. Inner Disciple status awaits."
		default:
			return "You have begun your journey as an Outer Disciple. Keep contributing to advance."
		}
	default:
		return "Begin your cultivation journey by contributing to the sect to advance your rank."
	}
}
