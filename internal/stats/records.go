// Package stats decodes per-layer statistics records returned by the analysis
// backend and formats them into labelled sections for display.
//
// Each layer has its own record type. Every field is optional: the backend
// omits or nulls values when data is missing, and formatters skip them.
package stats

import (
	"encoding/json"
	"fmt"

	"github.com/joeblew999/plat-eco/internal/layer"
)

// Record is one of the per-layer statistics variants.
type Record interface {
	Layer() layer.Layer
	isRecord()
}

// Decode parses raw into the record type for l.
func Decode(l layer.Layer, raw []byte) (Record, error) {
	var rec Record
	switch l {
	case layer.Forest:
		rec = &Forest{}
	case layer.Wetland:
		rec = &Wetland{}
	case layer.Tundra:
		rec = &Tundra{}
	case layer.Grassland:
		rec = &Grassland{}
	case layer.AlgalBlooms:
		rec = &AlgalBlooms{}
	case layer.Soil:
		rec = &Soil{}
	case layer.Chlorophyll:
		rec = &Chlorophyll{}
	default:
		return nil, fmt.Errorf("%w: %q", layer.ErrInvalidLayer, l)
	}
	if len(raw) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, fmt.Errorf("decoding %s statistics: %w", l, err)
	}
	return rec, nil
}

// Forest is the forest biomass and carbon record.
type Forest struct {
	AreaHa              *float64 `json:"roi_area_ha"`
	AreaKm2             *float64 `json:"roi_area_km2"`
	MeanNDVI            *float64 `json:"mean_NDVI"`
	MeanNBR             *float64 `json:"mean_NBR"`
	Classification      *string  `json:"forest_classification"`
	DataSource          *string  `json:"data_source"`
	ImagesProcessed     *int     `json:"images_processed"`
	BiomassPartitioning *struct {
		AbovegroundPerHa *float64 `json:"aboveground_biomass_Mg_per_ha"`
		BelowgroundPerHa *float64 `json:"belowground_biomass_Mg_per_ha"`
		TotalPerHa       *float64 `json:"total_biomass_Mg_per_ha"`
	} `json:"biomass_partitioning"`
	BiomassEstimation *struct {
		AveragePerHa *float64 `json:"average_biomass_Mg_per_ha"`
		Total        *float64 `json:"total_biomass_Mg"`
	} `json:"biomass_estimation"`
	CarbonStock *struct {
		ConversionFactor *float64 `json:"conversion_factor"`
		AveragePerHa     *float64 `json:"average_carbon_stock_MgC_per_ha"`
		Total            *float64 `json:"total_carbon_stock_MgC"`
	} `json:"carbon_stock_estimation"`
	CO2Equivalent *struct {
		ConversionFactor *float64 `json:"conversion_factor"`
		Total            *float64 `json:"total_co2_eq_Mg"`
	} `json:"co2_equivalent_estimation"`
}

// WetlandClass is the area and share of one wetland class.
type WetlandClass struct {
	AreaKm2    *float64 `json:"area_km2"`
	Percentage *float64 `json:"percentage"`
}

// WetlandChange compares the first and last year of the analysis period.
// Paired fields hold [start, end].
type WetlandChange struct {
	StartYear          *int      `json:"start_year"`
	EndYear            *int      `json:"end_year"`
	WetlandAreaHa      []float64 `json:"wetland_area_ha"`
	NDWIMean           []float64 `json:"ndwi_mean"`
	NDVIMeanVegetated  []float64 `json:"ndvi_mean_vegetated"`
	FragmentationIndex []float64 `json:"fragmentation_index"`
}

// Wetland is the wetland classification record.
type Wetland struct {
	AreaKm2             *float64                `json:"roi_area_km2"`
	AreaHa              *float64                `json:"roi_area_ha"`
	TotalWetlandKm2     *float64                `json:"total_wetland_area_km2"`
	CoveragePercent     *float64                `json:"wetland_coverage_percent"`
	WetlandClass        *string                 `json:"wetland_class"`
	MeanNDVI            *float64                `json:"mean_ndvi"`
	MeanMNDWI           *float64                `json:"mean_mndwi"`
	MeanNDMI            *float64                `json:"mean_ndmi"`
	WaterFrequencyIndex *float64                `json:"water_frequency_index"`
	ClassStatistics     map[string]WetlandClass `json:"class_statistics"`
	BiomassCarbon       *struct {
		AbovegroundPerHa *float64 `json:"aboveground_biomass_Mg_per_ha"`
		BelowgroundPerHa *float64 `json:"belowground_biomass_Mg_per_ha"`
		TotalPerHa       *float64 `json:"total_biomass_Mg_per_ha"`
		TotalBiomass     *float64 `json:"total_biomass_Mg"`
		CarbonPerHa      *float64 `json:"carbon_stock_MgC_per_ha"`
		TotalCarbon      *float64 `json:"total_carbon_stock_MgC"`
		CO2Equivalent    *float64 `json:"co2_equivalent_MgCO2e"`
	} `json:"biomass_carbon"`
	ChangeOverTime    *WetlandChange `json:"change_over_time"`
	DataSource        *string        `json:"data_source"`
	ImagesProcessed   *int           `json:"images_processed"`
	CloudThreshold    *string        `json:"cloud_threshold_used"`
	AnalysisMethod    *string        `json:"analysis_method"`
	SpatialResolution *string        `json:"spatial_resolution"`
}

// Tundra is the permafrost-aware tundra classification record.
type Tundra struct {
	AreaKm2         *float64 `json:"roi_area_km2"`
	TotalTundraKm2  *float64 `json:"total_tundra_area_km2"`
	CoveragePercent *float64 `json:"tundra_coverage_percent"`
	DominantType    *string  `json:"dominant_tundra_type"`
	ClassAreasKm2   *struct {
		NoTundra       *float64 `json:"no_tundra"`
		ArcticTundra   *float64 `json:"arctic_tundra"`
		AlpineTundra   *float64 `json:"alpine_tundra"`
		WetTundra      *float64 `json:"wet_tundra"`
		ShrubDryTundra *float64 `json:"shrub_dry_tundra"`
	} `json:"class_areas_km2"`
	Environmental *struct {
		MeanTemperatureC      *float64 `json:"mean_temperature_celsius"`
		MeanNDVI              *float64 `json:"mean_ndvi"`
		MeanElevationM        *float64 `json:"mean_elevation_m"`
		MeanNDWI              *float64 `json:"mean_ndwi"`
		PermafrostProbability *float64 `json:"permafrost_probability"`
	} `json:"environmental_indicators"`
	Climate *struct {
		PermafrostExtentKm2 *float64 `json:"permafrost_extent_km2"`
		ThawZonesKm2        *float64 `json:"potential_thaw_zones_km2"`
		AlpineArcticRatio   *float64 `json:"alpine_vs_arctic_ratio"`
		WetDryRatio         *float64 `json:"wet_vs_dry_ratio"`
	} `json:"climate_indicators"`
	Adaptive *struct {
		Latitude             *float64 `json:"latitude"`
		AlpineElevation      *float64 `json:"alpine_elevation_threshold"`
		TemperatureThreshold *float64 `json:"temperature_threshold"`
		PermafrostBoost      *float64 `json:"permafrost_boost"`
	} `json:"adaptive_parameters"`
	AnalysisMethod *string `json:"analysis_method"`
}

// Grassland is the grassland and savanna record. The backend wraps the
// numbers in grassland_analysis alongside a methodology block.
type Grassland struct {
	Analysis *struct {
		AreaHa     *float64 `json:"roi_area_hectares"`
		AreaKm2    *float64 `json:"roi_area_km2"`
		MeanNDVI   *float64 `json:"mean_ndvi"`
		Vegetation *struct {
			NonVegetationHa   *float64 `json:"non_vegetation_area_ha"`
			GrasslandHa       *float64 `json:"grassland_area_ha"`
			SavannaHa         *float64 `json:"savanna_area_ha"`
			DenseVegetationHa *float64 `json:"dense_vegetation_area_ha"`
		} `json:"vegetation_classification"`
		Carbon *struct {
			TotalBiomass  *float64 `json:"total_biomass_Mg"`
			TotalCarbon   *float64 `json:"total_carbon_stock_MgC"`
			CO2Equivalent *float64 `json:"co2_equivalent_MgCO2e"`
		} `json:"carbon_estimation"`
	} `json:"grassland_analysis"`
	Methodology *struct {
		Approach   *string `json:"approach"`
		DataSource *string `json:"data_source"`
	} `json:"methodology"`
}

// AlgalBlooms is the NDCI-based bloom detection record.
type AlgalBlooms struct {
	AreaSqKm         *float64 `json:"roi_area_sq_km"`
	MeanNDCI         *float64 `json:"mean_ndci"`
	BloomDetected    *bool    `json:"bloom_detected"`
	BloomExtentSqKm  *float64 `json:"bloom_extent_sq_km"`
	SeverityLevel    *string  `json:"severity_level"`
	ClassificationHa *struct {
		NoBloom       *float64 `json:"no_bloom_ha"`
		LowBloom      *float64 `json:"low_bloom_ha"`
		ModerateBloom *float64 `json:"moderate_bloom_ha"`
		SevereBloom   *float64 `json:"severe_bloom_ha"`
		TotalBloom    *float64 `json:"total_bloom_area_ha"`
	} `json:"classification_by_area_ha"`
	WaterQuality *struct {
		Chlorophyll *string `json:"chlorophyll_indicator"`
		Turbidity   *string `json:"turbidity_level"`
	} `json:"water_quality_indicators"`
	DataQuality *struct {
		ImagesProcessed   *int    `json:"images_processed"`
		AnalysisMethod    *string `json:"analysis_method"`
		SpatialResolution *string `json:"spatial_resolution"`
	} `json:"data_quality"`
}

// Soil is the soil moisture record.
type Soil struct {
	AreaKm2          *float64 `json:"roi_area_km2"`
	MoistureIndex    *float64 `json:"soil_moisture_index"`
	MoistureLevel    *string  `json:"soil_moisture_level"`
	NDVI             *float64 `json:"vegetation_index_ndvi"`
	NDWI             *float64 `json:"water_index_ndwi"`
	SurfaceTempC     *float64 `json:"land_surface_temperature_c"`
	DataAvailability *struct {
		Sentinel2 *bool `json:"sentinel2_available"`
		ModisLST  *bool `json:"modis_lst_available"`
	} `json:"data_availability"`
	AnalysisMethod *string `json:"analysis_method"`
}

// Chlorophyll is the ocean chlorophyll-a record. Trophic status, water
// quality and bloom risk are free text chosen by the backend.
type Chlorophyll struct {
	AreaKm2            *float64 `json:"roi_area_km2"`
	LandAreaKm2        *float64 `json:"land_area_km2"`
	OceanAreaKm2       *float64 `json:"ocean_area_km2"`
	OceanCoverage      *float64 `json:"ocean_coverage_percent"`
	MeanChlorophyll    *float64 `json:"mean_chlorophyll_mg_m3"`
	TrophicStatus      *string  `json:"trophic_status"`
	WaterQuality       *string  `json:"water_quality_assessment"`
	BloomRisk          *string  `json:"bloom_risk"`
	AnalysisApplicable *bool    `json:"analysis_applicable"`
	DataSource         *string  `json:"data_source"`
	ImagesProcessed    *int     `json:"images_processed"`
	Recommendation     *string  `json:"recommendation"`
}

func (*Forest) Layer() layer.Layer      { return layer.Forest }
func (*Wetland) Layer() layer.Layer     { return layer.Wetland }
func (*Tundra) Layer() layer.Layer      { return layer.Tundra }
func (*Grassland) Layer() layer.Layer   { return layer.Grassland }
func (*AlgalBlooms) Layer() layer.Layer { return layer.AlgalBlooms }
func (*Soil) Layer() layer.Layer        { return layer.Soil }
func (*Chlorophyll) Layer() layer.Layer { return layer.Chlorophyll }

func (*Forest) isRecord()      {}
func (*Wetland) isRecord()     {}
func (*Tundra) isRecord()      {}
func (*Grassland) isRecord()   {}
func (*AlgalBlooms) isRecord() {}
func (*Soil) isRecord()        {}
func (*Chlorophyll) isRecord() {}
