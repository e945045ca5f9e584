package cloud

import (
	"math"
	"sort"
	"time"

	"TrendCloud/internal/calculator"
	"TrendCloud/internal/model"
)

const (
	minBins = 5
	maxBins = 15

	densityScale = 1.5
	minDensity   = 0.2
	maxDensity   = 1.0
)

// Options configures projection, grouping and weight allocation.
type Options struct {
	HorizonDays          int
	TotalWeight          float64
	ConvergenceThreshold float64 // fraction of the current price
	Bins                 int
	Temperature          float64
	MinRSquared          float64
	MinTrendlines        int
	MaxTrendlines        int
	// MaxProjectionDeviation drops projections further than this fraction from
	// the current price. 0 disables the filter.
	MaxProjectionDeviation float64
}

// DefaultOptions returns the standard engine configuration.
func DefaultOptions() Options {
	return Options{
		HorizonDays:            5,
		TotalWeight:            100,
		ConvergenceThreshold:   0.05,
		Bins:                   10,
		Temperature:            2.0,
		MinRSquared:            0.3,
		MinTrendlines:          2,
		MaxTrendlines:          20,
		MaxProjectionDeviation: 0.30,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HorizonDays <= 0 {
		o.HorizonDays = def.HorizonDays
	}
	if o.TotalWeight <= 0 {
		o.TotalWeight = def.TotalWeight
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = def.ConvergenceThreshold
	}
	if o.Bins <= 0 {
		o.Bins = def.Bins
	}
	o.Bins = min(max(o.Bins, minBins), maxBins)
	if o.Temperature <= 0 {
		o.Temperature = def.Temperature
	}
	// a zone always needs at least two agreeing lines
	if o.MinTrendlines < 2 {
		o.MinTrendlines = 2
	}
	if o.MaxTrendlines <= 0 {
		o.MaxTrendlines = def.MaxTrendlines
	}
	if o.MaxProjectionDeviation < 0 {
		o.MaxProjectionDeviation = 0
	}
	return o
}

// Result is the trend cloud for one calculation date.
type Result struct {
	TargetDate  time.Time
	Zones       []model.ConvergenceZone
	Points      []model.TrendCloudPoint
	TotalWeight float64
}

// Engine turns trendlines into weighted convergence zones.
type Engine struct {
	opts Options
}

// NewEngine creates an engine; unset options take their defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Options returns the effective configuration.
func (e *Engine) Options() Options {
	return e.opts
}

type projection struct {
	line  *model.Trendline
	price float64
}

type group struct {
	members  []projection
	sum      float64
	low      float64
	high     float64
	binIndex int
}

func (g *group) center() float64 {
	return g.sum / float64(len(g.members))
}

func (g *group) add(p projection) {
	if len(g.members) == 0 {
		g.low, g.high = p.price, p.price
	}
	g.members = append(g.members, p)
	g.sum += p.price
	g.low = math.Min(g.low, p.price)
	g.high = math.Max(g.high, p.price)
}

// accepts reports whether p lies within thr of the group center and keeps the
// group's price span within thr.
func (g *group) accepts(p projection, thr float64) bool {
	if math.Abs(p.price-g.center()) > thr {
		return false
	}
	return math.Max(g.high, p.price)-math.Min(g.low, p.price) <= thr
}

// Build projects trendlines to calculationDate + horizon and allocates the weight
// budget over the zones where at least MinTrendlines of them agree. A result
// without zones has TotalWeight 0.
func (e *Engine) Build(trendlines []model.Trendline, calculationDate time.Time, currentPrice float64) Result {
	res := Result{TargetDate: calculationDate.AddDate(0, 0, e.opts.HorizonDays)}
	if currentPrice <= 0 || math.IsNaN(currentPrice) {
		return res
	}

	projections := e.project(e.selectLines(trendlines), res.TargetDate, currentPrice)
	groups := groupProjections(projections, e.opts.ConvergenceThreshold*currentPrice)

	var zones []*group
	for _, g := range groups {
		if len(g.members) >= e.opts.MinTrendlines {
			zones = append(zones, g)
		}
	}
	if len(zones) == 0 {
		return res
	}

	weights := e.allocate(zones)
	maxWeight := 0.0
	for _, w := range weights {
		maxWeight = math.Max(maxWeight, w)
	}

	for i, g := range zones {
		zone := makeZone(g, currentPrice, weights[i])
		normalized := 0.0
		if maxWeight > 0 {
			normalized = weights[i] / maxWeight
		}
		res.Zones = append(res.Zones, zone)
		res.Points = append(res.Points, model.TrendCloudPoint{
			PriceLevel:       zone.CenterPrice,
			Weight:           zone.Weight,
			NormalizedWeight: normalized,
			Density:          calculator.Clamp(normalized*densityScale, minDensity, maxDensity),
			TrendlineCount:   len(zone.ConvergingTrendlines),
			Confidence:       zone.AvgConfidence,
			Kind:             zone.Kind,
		})
		res.TotalWeight += zone.Weight
	}
	return res
}

// selectLines applies the quality floor and keeps the top MaxTrendlines by
// strength, then R².
func (e *Engine) selectLines(trendlines []model.Trendline) []*model.Trendline {
	var out []*model.Trendline
	for i := range trendlines {
		tl := &trendlines[i]
		if tl.Strength() < 2 || tl.RSquared < e.opts.MinRSquared {
			continue
		}
		out = append(out, tl)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Strength() != out[j].Strength() {
			return out[i].Strength() > out[j].Strength()
		}
		return out[i].RSquared > out[j].RSquared
	})
	if len(out) > e.opts.MaxTrendlines {
		out = out[:e.opts.MaxTrendlines]
	}
	return out
}

func (e *Engine) project(lines []*model.Trendline, target time.Time, currentPrice float64) []projection {
	out := make([]projection, 0, len(lines))
	for _, tl := range lines {
		price := tl.PriceAt(target)
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			continue
		}
		if e.opts.MaxProjectionDeviation > 0 &&
			math.Abs(price-currentPrice)/currentPrice > e.opts.MaxProjectionDeviation {
			continue
		}
		out = append(out, projection{line: tl, price: price})
	}
	return out
}

// groupProjections assigns each projection, in rank order, to the first group
// that accepts it or to a new group.
func groupProjections(projections []projection, thr float64) []*group {
	var groups []*group
	for _, p := range projections {
		placed := false
		for _, g := range groups {
			if g.accepts(p, thr) {
				g.add(p)
				placed = true
				break
			}
		}
		if !placed {
			g := &group{}
			g.add(p)
			groups = append(groups, g)
		}
	}
	return groups
}

// allocate bins zone centers into equal-width buckets, softmaxes the normalized
// bucket strengths over occupied buckets and splits each bucket's share evenly
// among its zones. The returned weights sum to TotalWeight.
func (e *Engine) allocate(zones []*group) []float64 {
	centers := make([]float64, len(zones))
	for i, g := range zones {
		centers[i] = g.center()
	}
	lo, hi, _ := calculator.ValueRange(centers)
	width := (hi - lo) / float64(e.opts.Bins)

	strength := make([]float64, e.opts.Bins)
	count := make([]int, e.opts.Bins)
	for i, g := range zones {
		idx := 0
		if width > 0 {
			idx = min(int((centers[i]-lo)/width), e.opts.Bins-1)
		}
		g.binIndex = idx
		count[idx]++
		strength[idx] += totalStrength(g)
	}

	maxStrength := 0.0
	for b := range strength {
		if count[b] > 0 {
			maxStrength = math.Max(maxStrength, strength[b])
		}
	}
	logits := make([]float64, e.opts.Bins)
	maxLogit := math.Inf(-1)
	for b := range strength {
		if count[b] == 0 {
			continue
		}
		if maxStrength > 0 {
			logits[b] = strength[b] / maxStrength / e.opts.Temperature
		}
		maxLogit = math.Max(maxLogit, logits[b])
	}
	share := make([]float64, e.opts.Bins)
	sum := 0.0
	for b := range logits {
		if count[b] == 0 {
			continue
		}
		share[b] = math.Exp(logits[b] - maxLogit)
		sum += share[b]
	}

	weights := make([]float64, len(zones))
	for i, g := range zones {
		b := g.binIndex
		weights[i] = e.opts.TotalWeight * share[b] / sum / float64(count[b])
	}
	return weights
}

// totalStrength sums the time-decayed strength of the zone's lines.
func totalStrength(g *group) float64 {
	s := 0.0
	for _, p := range g.members {
		s += lineStrength(p.line)
	}
	return s
}

// lineStrength is the line's weighted strength, or its point count for lines
// fitted without weights.
func lineStrength(tl *model.Trendline) float64 {
	if tl.WeightedStrength > 0 {
		return tl.WeightedStrength
	}
	return float64(tl.Strength())
}

func makeZone(g *group, currentPrice, weight float64) model.ConvergenceZone {
	ids := make([]string, len(g.members))
	var conf float64
	for i, p := range g.members {
		ids[i] = p.line.ID
		conf += p.line.RSquared
	}
	center := g.center()
	kind := model.Support
	if center > currentPrice {
		kind = model.Resistance
	}
	return model.ConvergenceZone{
		CenterPrice:          center,
		PriceRange:           model.PriceRange{Low: g.low, High: g.high},
		ConvergingTrendlines: ids,
		TotalStrength:        totalStrength(g),
		AvgConfidence:        conf / float64(len(g.members)),
		Weight:               weight,
		Kind:                 kind,
	}
}
