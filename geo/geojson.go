package geo

import (
	"time"

	"github.com/kamnsolar/field_capture/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CustomerPhotoFeatures builds one point feature per located photo.
func CustomerPhotoFeatures(customer *models.Customer) []*geojson.Feature {
	var features []*geojson.Feature
	if customer == nil {
		return features
	}
	for _, section := range models.AllSections {
		record := customer.Section(section)
		if record == nil {
			continue
		}
		for _, photo := range record.Photos {
			if photo.Geolocation == nil {
				continue
			}
			feature := locationFeature(photo.Geolocation)
			feature.Properties["customerId"] = customer.ID
			feature.Properties["customer"] = customer.Name
			feature.Properties["district"] = customer.District
			feature.Properties["section"] = string(section)
			feature.Properties["title"] = photo.Title
			if photo.ImageUrl != "" {
				feature.Properties["imageUrl"] = photo.ImageUrl
			}
			features = append(features, feature)
		}
	}
	return features
}

// DraftFeatures covers locations of photos not yet uploaded.
func DraftFeatures(draft models.DraftState) []*geojson.Feature {
	var features []*geojson.Feature
	for _, section := range draft.PendingSections() {
		for _, p := range draft.PendingPhotos(section, models.SlotsFor(section, draft.Customer.PlantType)) {
			if p.Geolocation == nil {
				continue
			}
			feature := locationFeature(p.Geolocation)
			feature.Properties["customerId"] = draft.CurrentCustomerId
			feature.Properties["section"] = string(section)
			feature.Properties["title"] = p.Slot
			feature.Properties["pending"] = true
			features = append(features, feature)
		}
	}
	return features
}

func FeatureCollection(features ...[]*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, group := range features {
		for _, f := range group {
			fc.Append(f)
		}
	}
	return fc
}

func locationFeature(loc *models.LocationRecord) *geojson.Feature {
	feature := geojson.NewFeature(orb.Point{loc.Longitude, loc.Latitude})
	feature.Properties["accuracy"] = loc.Accuracy
	feature.Properties["address"] = loc.Address
	if !loc.Timestamp.IsZero() {
		feature.Properties["timestamp"] = loc.Timestamp.Format(time.RFC3339)
	}
	return feature
}
