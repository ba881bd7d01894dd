package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Row is one labelled value.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Section groups related rows under a heading.
type Section struct {
	Title string `json:"title"`
	Rows  []Row  `json:"rows"`
}

// Format renders rec into display sections. Sections without any present
// field are dropped.
func Format(rec Record) []Section {
	switch r := rec.(type) {
	case *Forest:
		return formatForest(r)
	case *Wetland:
		return formatWetland(r)
	case *Tundra:
		return formatTundra(r)
	case *Grassland:
		return formatGrassland(r)
	case *AlgalBlooms:
		return formatAlgalBlooms(r)
	case *Soil:
		return formatSoil(r)
	case *Chlorophyll:
		return formatChlorophyll(r)
	}
	return nil
}

// ChangeSummary describes the change from start to end, e.g.
// "+20.00 ha (20.0%)". The percentage is omitted when start is zero.
func ChangeSummary(start, end float64, unit string) string {
	diff := end - start
	s := strconv.FormatFloat(diff, 'f', 2, 64)
	if diff >= 0 {
		s = "+" + s
	}
	if unit != "" {
		s += " " + unit
	}
	if start != 0 {
		s += fmt.Sprintf(" (%.1f%%)", diff/start*100)
	}
	return s
}

func formatForest(r *Forest) []Section {
	overview := newSection("Overview")
	overview.num("Area", r.AreaHa, 2, "ha")
	overview.num("Area", r.AreaKm2, 2, "km²")
	overview.text("Forest class", r.Classification)
	overview.num("Mean NDVI", r.MeanNDVI, 4, "")
	overview.num("Mean NBR", r.MeanNBR, 4, "")
	overview.text("Data source", r.DataSource)
	overview.count("Images processed", r.ImagesProcessed)

	biomass := newSection("Biomass")
	if p := r.BiomassPartitioning; p != nil {
		biomass.num("Aboveground", p.AbovegroundPerHa, 2, "Mg/ha")
		biomass.num("Belowground", p.BelowgroundPerHa, 2, "Mg/ha")
		biomass.num("Total per hectare", p.TotalPerHa, 2, "Mg/ha")
	}
	if e := r.BiomassEstimation; e != nil {
		biomass.num("Average", e.AveragePerHa, 2, "Mg/ha")
		biomass.num("Total biomass", e.Total, 2, "Mg")
	}

	carbon := newSection("Carbon Stock")
	if c := r.CarbonStock; c != nil {
		carbon.num("Average", c.AveragePerHa, 2, "MgC/ha")
		carbon.num("Total", c.Total, 2, "MgC")
		carbon.num("Conversion factor", c.ConversionFactor, 2, "")
	}

	co2 := newSection("CO₂ Equivalent")
	if c := r.CO2Equivalent; c != nil {
		co2.num("Total", c.Total, 2, "Mg CO₂e")
		co2.num("Conversion factor", c.ConversionFactor, 2, "")
	}

	return collect(overview, biomass, carbon, co2)
}

func formatWetland(r *Wetland) []Section {
	overview := newSection("Overview")
	overview.num("Area", r.AreaKm2, 2, "km²")
	overview.num("Area", r.AreaHa, 2, "ha")
	overview.num("Wetland area", r.TotalWetlandKm2, 3, "km²")
	overview.num("Wetland coverage", r.CoveragePercent, 2, "%")
	overview.text("Wetland class", r.WetlandClass)
	overview.num("Water frequency index", r.WaterFrequencyIndex, 3, "")

	indices := newSection("Spectral Indices")
	indices.num("Mean NDVI", r.MeanNDVI, 4, "")
	indices.num("Mean MNDWI", r.MeanMNDWI, 4, "")
	indices.num("Mean NDMI", r.MeanNDMI, 4, "")

	classes := newSection("Classes")
	names := make([]string, 0, len(r.ClassStatistics))
	for name := range r.ClassStatistics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := r.ClassStatistics[name]
		if c.AreaKm2 == nil {
			continue
		}
		value := strconv.FormatFloat(*c.AreaKm2, 'f', 3, 64) + " km²"
		if c.Percentage != nil {
			value += fmt.Sprintf(" (%.2f%%)", *c.Percentage)
		}
		classes.add(name, value)
	}

	biomass := newSection("Biomass & Carbon")
	if b := r.BiomassCarbon; b != nil {
		biomass.num("Aboveground", b.AbovegroundPerHa, 2, "Mg/ha")
		biomass.num("Belowground", b.BelowgroundPerHa, 2, "Mg/ha")
		biomass.num("Total per hectare", b.TotalPerHa, 2, "Mg/ha")
		biomass.num("Total biomass", b.TotalBiomass, 2, "Mg")
		biomass.num("Carbon stock", b.CarbonPerHa, 2, "MgC/ha")
		biomass.num("Total carbon", b.TotalCarbon, 2, "MgC")
		biomass.num("CO₂ equivalent", b.CO2Equivalent, 2, "Mg CO₂e")
	}

	change := newSection("Change Over Time")
	if c := r.ChangeOverTime; c != nil {
		if c.StartYear != nil && c.EndYear != nil {
			change.add("Period", fmt.Sprintf("%d → %d", *c.StartYear, *c.EndYear))
		}
		if start, end, ok := pair(c.WetlandAreaHa); ok {
			change.add("Wetland area", fmt.Sprintf("%.2f ha → %.2f ha", start, end))
			change.add("Change", ChangeSummary(start, end, "ha"))
		}
		if start, end, ok := pair(c.NDWIMean); ok {
			change.add("Mean NDWI", fmt.Sprintf("%.3f → %.3f", start, end))
		}
		if start, end, ok := pair(c.NDVIMeanVegetated); ok {
			change.add("Mean NDVI (vegetated)", fmt.Sprintf("%.2f → %.2f", start, end))
		}
		if start, end, ok := pair(c.FragmentationIndex); ok {
			change.add("Fragmentation index", fmt.Sprintf("%.2f → %.2f", start, end))
		}
	}

	data := newSection("Data")
	data.text("Source", r.DataSource)
	data.count("Images processed", r.ImagesProcessed)
	data.text("Cloud threshold", r.CloudThreshold)
	data.text("Method", r.AnalysisMethod)
	data.text("Resolution", r.SpatialResolution)

	return collect(overview, indices, classes, biomass, change, data)
}

func formatTundra(r *Tundra) []Section {
	overview := newSection("Overview")
	overview.num("Area", r.AreaKm2, 2, "km²")
	overview.num("Tundra area", r.TotalTundraKm2, 2, "km²")
	overview.num("Tundra coverage", r.CoveragePercent, 1, "%")
	overview.text("Dominant type", r.DominantType)

	classes := newSection("Class Areas")
	if c := r.ClassAreasKm2; c != nil {
		classes.num("No tundra", c.NoTundra, 2, "km²")
		classes.num("Arctic tundra", c.ArcticTundra, 2, "km²")
		classes.num("Alpine tundra", c.AlpineTundra, 2, "km²")
		classes.num("Wet tundra", c.WetTundra, 2, "km²")
		classes.num("Shrub/dry tundra", c.ShrubDryTundra, 2, "km²")
	}

	env := newSection("Environmental Indicators")
	if e := r.Environmental; e != nil {
		env.num("Mean temperature", e.MeanTemperatureC, 1, "°C")
		env.num("Mean NDVI", e.MeanNDVI, 3, "")
		env.num("Mean elevation", e.MeanElevationM, 0, "m")
		env.num("Mean NDWI", e.MeanNDWI, 3, "")
		env.num("Permafrost probability", e.PermafrostProbability, 2, "")
	}

	climate := newSection("Climate Indicators")
	if c := r.Climate; c != nil {
		climate.num("Permafrost extent", c.PermafrostExtentKm2, 2, "km²")
		climate.num("Potential thaw zones", c.ThawZonesKm2, 2, "km²")
		climate.num("Alpine/arctic ratio", c.AlpineArcticRatio, 2, "")
		climate.num("Wet/dry ratio", c.WetDryRatio, 2, "")
	}

	adaptive := newSection("Adaptive Parameters")
	if a := r.Adaptive; a != nil {
		adaptive.num("Latitude", a.Latitude, 1, "°")
		adaptive.num("Alpine elevation threshold", a.AlpineElevation, 0, "m")
		adaptive.num("Temperature threshold", a.TemperatureThreshold, 1, "°C")
		adaptive.num("Permafrost boost", a.PermafrostBoost, 2, "")
	}
	adaptive.text("Method", r.AnalysisMethod)

	return collect(overview, classes, env, climate, adaptive)
}

func formatGrassland(r *Grassland) []Section {
	overview := newSection("Overview")
	vegetation := newSection("Vegetation Classes")
	carbon := newSection("Carbon Estimation")
	if a := r.Analysis; a != nil {
		overview.num("Area", a.AreaHa, 2, "ha")
		overview.num("Area", a.AreaKm2, 2, "km²")
		overview.num("Mean NDVI", a.MeanNDVI, 3, "")
		if v := a.Vegetation; v != nil {
			vegetation.num("Non-vegetation", v.NonVegetationHa, 2, "ha")
			vegetation.num("Grassland", v.GrasslandHa, 2, "ha")
			vegetation.num("Savanna", v.SavannaHa, 2, "ha")
			vegetation.num("Dense vegetation", v.DenseVegetationHa, 2, "ha")
		}
		if c := a.Carbon; c != nil {
			carbon.num("Total biomass", c.TotalBiomass, 2, "Mg")
			carbon.num("Carbon stock", c.TotalCarbon, 2, "MgC")
			carbon.num("CO₂ equivalent", c.CO2Equivalent, 2, "Mg CO₂e")
		}
	}

	method := newSection("Methodology")
	if m := r.Methodology; m != nil {
		method.text("Approach", m.Approach)
		method.text("Data source", m.DataSource)
	}

	return collect(overview, vegetation, carbon, method)
}

func formatAlgalBlooms(r *AlgalBlooms) []Section {
	overview := newSection("Bloom Detection")
	overview.num("Area", r.AreaSqKm, 2, "km²")
	overview.flag("Bloom detected", r.BloomDetected)
	overview.text("Severity", r.SeverityLevel)
	overview.num("Bloom extent", r.BloomExtentSqKm, 2, "km²")
	overview.num("Mean NDCI", r.MeanNDCI, 4, "")

	classes := newSection("Classification by Area")
	if c := r.ClassificationHa; c != nil {
		classes.num("No bloom", c.NoBloom, 2, "ha")
		classes.num("Low", c.LowBloom, 2, "ha")
		classes.num("Moderate", c.ModerateBloom, 2, "ha")
		classes.num("Severe", c.SevereBloom, 2, "ha")
		classes.num("Total bloom area", c.TotalBloom, 2, "ha")
	}

	quality := newSection("Water Quality")
	if q := r.WaterQuality; q != nil {
		quality.text("Chlorophyll indicator", q.Chlorophyll)
		quality.text("Turbidity", q.Turbidity)
	}

	data := newSection("Data")
	if d := r.DataQuality; d != nil {
		data.count("Images processed", d.ImagesProcessed)
		data.text("Method", d.AnalysisMethod)
		data.text("Resolution", d.SpatialResolution)
	}

	return collect(overview, classes, quality, data)
}

func formatSoil(r *Soil) []Section {
	overview := newSection("Soil Moisture")
	overview.num("Area", r.AreaKm2, 2, "km²")
	overview.text("Moisture level", r.MoistureLevel)
	overview.num("Moisture index", r.MoistureIndex, 3, "")

	indicators := newSection("Indicators")
	indicators.num("NDVI", r.NDVI, 3, "")
	indicators.num("NDWI", r.NDWI, 3, "")
	indicators.num("Land surface temperature", r.SurfaceTempC, 1, "°C")

	data := newSection("Data")
	if d := r.DataAvailability; d != nil {
		data.flag("Sentinel-2 available", d.Sentinel2)
		data.flag("MODIS LST available", d.ModisLST)
	}
	data.text("Method", r.AnalysisMethod)

	return collect(overview, indicators, data)
}

func formatChlorophyll(r *Chlorophyll) []Section {
	overview := newSection("Coverage")
	overview.num("Area", r.AreaKm2, 2, "km²")
	overview.num("Ocean area", r.OceanAreaKm2, 2, "km²")
	overview.num("Land area", r.LandAreaKm2, 2, "km²")
	overview.num("Ocean coverage", r.OceanCoverage, 1, "%")

	quality := newSection("Water Quality")
	quality.num("Mean chlorophyll-a", r.MeanChlorophyll, 3, "mg/m³")
	quality.text("Trophic status", r.TrophicStatus)
	quality.text("Water quality", r.WaterQuality)
	quality.text("Bloom risk", r.BloomRisk)

	data := newSection("Data")
	data.flag("Analysis applicable", r.AnalysisApplicable)
	data.text("Source", r.DataSource)
	data.count("Images processed", r.ImagesProcessed)
	data.text("Recommendation", r.Recommendation)

	return collect(overview, quality, data)
}

func newSection(title string) *Section {
	return &Section{Title: title}
}

func (s *Section) add(label, value string) {
	s.Rows = append(s.Rows, Row{Label: label, Value: value})
}

func (s *Section) num(label string, v *float64, decimals int, unit string) {
	if v == nil {
		return
	}
	value := strconv.FormatFloat(*v, 'f', decimals, 64)
	switch {
	case unit == "":
	case unit == "%" || strings.HasPrefix(unit, "°"):
		value += unit
	default:
		value += " " + unit
	}
	s.add(label, value)
}

func (s *Section) count(label string, v *int) {
	if v == nil {
		return
	}
	s.add(label, strconv.Itoa(*v))
}

func (s *Section) text(label string, v *string) {
	if v == nil || *v == "" {
		return
	}
	s.add(label, *v)
}

func (s *Section) flag(label string, v *bool) {
	if v == nil {
		return
	}
	if *v {
		s.add(label, "Yes")
	} else {
		s.add(label, "No")
	}
}

func pair(values []float64) (start, end float64, ok bool) {
	if len(values) != 2 {
		return 0, 0, false
	}
	return values[0], values[1], true
}

func collect(sections ...*Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if len(s.Rows) > 0 {
			out = append(out, *s)
		}
	}
	return out
}
