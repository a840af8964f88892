// Package catalog ingests the NASA NeoWs near-Earth object feed and turns it
// into the immutable tracked-object sets the propagation engine works from.
package catalog

import (
	"time"

	"github.com/neowatch/neowatch/internal/ephemeris"
)

// RawEntry is one object as delivered by the NeoWs browse/feed endpoints.
// Numeric orbital fields arrive as decimal strings in the feed.
type RawEntry struct {
	ID                     string              `json:"id"`
	NeoReferenceID         string              `json:"neo_reference_id"`
	Name                   string              `json:"name"`
	AbsoluteMagnitudeH     float64             `json:"absolute_magnitude_h"`
	IsPotentiallyHazardous bool                `json:"is_potentially_hazardous_asteroid"`
	EstimatedDiameter      RawDiameter         `json:"estimated_diameter"`
	OrbitalData            *RawOrbitalData     `json:"orbital_data"`
	CloseApproachData      []RawCloseApproach  `json:"close_approach_data"`
}

// RawDiameter holds the estimated diameter range in meters.
type RawDiameter struct {
	Meters struct {
		Min float64 `json:"estimated_diameter_min"`
		Max float64 `json:"estimated_diameter_max"`
	} `json:"meters"`
}

// RawOrbitalData holds the osculating elements as the feed ships them:
// semi-major axis in AU, epoch as a Julian day, everything else in degrees,
// all encoded as strings.
type RawOrbitalData struct {
	SemiMajorAxisAU    string `json:"semi_major_axis"`
	Eccentricity       string `json:"eccentricity"`
	InclinationDeg     string `json:"inclination"`
	AscendingNodeDeg   string `json:"ascending_node_longitude"`
	PerihelionArgDeg   string `json:"perihelion_argument"`
	MeanAnomalyDeg     string `json:"mean_anomaly"`
	MeanMotionDegDay   string `json:"mean_motion"`
	EpochOsculationJD  string `json:"epoch_osculation"`
}

// RawCloseApproach is one close-approach record from the feed.
type RawCloseApproach struct {
	CloseApproachDate      string `json:"close_approach_date"`
	CloseApproachDateFull  string `json:"close_approach_date_full"`
	EpochDateCloseApproach int64  `json:"epoch_date_close_approach"` // unix milliseconds
	OrbitingBody           string `json:"orbiting_body"`
	MissDistance           struct {
		Kilometers string `json:"kilometers"`
	} `json:"miss_distance"`
	RelativeVelocity struct {
		KilometersPerSecond string `json:"kilometers_per_second"`
	} `json:"relative_velocity"`
}

// CloseApproach is a parsed close-approach record.
type CloseApproach struct {
	Time                time.Time `json:"time"`
	OrbitingBody        string    `json:"orbiting_body"`
	MissDistanceKm      float64   `json:"miss_distance_km"`
	RelativeVelocityKmS float64   `json:"relative_velocity_km_s"`
}

// TrackedObject is one catalog object as the engine sees it. Elements is nil
// when the entry's orbital data was missing or unusable; such objects are
// still tracked and animated by the fallback placement model so the
// visualization never has holes. Never mutated after construction; a
// catalog refresh replaces the whole set.
type TrackedObject struct {
	ID                 string
	DisplayName        string
	Elements           *ephemeris.OrbitalElements
	Hazardous          bool
	AbsoluteMagnitudeH float64
	DiameterMinM       float64
	DiameterMaxM       float64
	CloseApproaches    []CloseApproach
}

// Dataset is an immutable snapshot of the tracked catalog.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Objects   []*TrackedObject

	byID map[string]*TrackedObject
}

// NewDataset builds a Dataset snapshot with its lookup index.
func NewDataset(source string, fetchedAt time.Time, objects []*TrackedObject) *Dataset {
	byID := make(map[string]*TrackedObject, len(objects))
	for _, obj := range objects {
		byID[obj.ID] = obj
	}
	return &Dataset{
		Source:    source,
		FetchedAt: fetchedAt,
		Objects:   objects,
		byID:      byID,
	}
}

// Lookup returns the tracked object with the given id, or nil.
func (d *Dataset) Lookup(id string) *TrackedObject {
	return d.byID[id]
}

// FallbackCount returns how many objects have no usable elements.
func (d *Dataset) FallbackCount() int {
	n := 0
	for _, obj := range d.Objects {
		if obj.Elements == nil {
			n++
		}
	}
	return n
}
