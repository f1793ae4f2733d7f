package surveyapi

import "github.com/kamnsolar/field_capture/models"

// PhotoUpload is one file of a section upload.
type PhotoUpload struct {
	Slot        string
	Filename    string
	ContentType string
	Data        []byte
	Geolocation *models.LocationRecord
}

type UploadRequest struct {
	CustomerId string
	Section    models.SectionId
	Photos     []PhotoUpload
}

// UploadResponse is the section state returned after an upload.
type UploadResponse struct {
	Status models.SectionStatus `json:"status"`
	Photos []models.PhotoRef    `json:"photos"`
	// some deployments nest the record under the section name
	Section *models.SectionRecord `json:"section,omitempty"`
}

func (r UploadResponse) Record() *models.SectionRecord {
	if r.Section != nil && (r.Section.Status != "" || len(r.Section.Photos) > 0) {
		return r.Section.Clone()
	}
	rec := &models.SectionRecord{Status: r.Status, Photos: r.Photos}
	return rec.Clone()
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

type errorResponse struct {
	Error   any    `json:"error"`
	Message string `json:"message"`
}
