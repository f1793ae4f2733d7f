package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/draftstore"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/reconcile"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	BatchStatusSuccess = "success"
	BatchStatusPartial = "partial"
	BatchStatusFailed  = "failed"
)

// PhotoUploader is the backend call the orchestrator needs.
type PhotoUploader interface {
	UploadPhotos(ctx context.Context, req surveyapi.UploadRequest) (*models.SectionRecord, error)
}

type Orchestrator struct {
	store *draftstore.Store
	api   PhotoUploader
}

func NewOrchestrator(store *draftstore.Store, api PhotoUploader) *Orchestrator {
	return &Orchestrator{store: store, api: api}
}

type Result struct {
	Section  models.SectionId      `json:"section"`
	Record   *models.SectionRecord `json:"record,omitempty"`
	Uploaded int                   `json:"uploaded"`
	// Skipped means every slot was already confirmed; nothing was sent.
	Skipped bool  `json:"skipped,omitempty"`
	Err     error `json:"-"`
}

type BatchResult struct {
	Results []Result           `json:"results"`
	Failed  []models.SectionId `json:"failed"`
	Status  string             `json:"status"`
}

// OK is true only when every attempted section succeeded.
func (b BatchResult) OK() bool {
	return len(b.Failed) == 0
}

// SubmitSection uploads the pending photos of one section. On failure the
// draft is left exactly as it was.
func (o *Orchestrator) SubmitSection(ctx context.Context, customerId string, section models.SectionId) (Result, error) {
	logger := config.GetLogger()
	result := Result{Section: section}
	if !section.IsValid() {
		result.Err = fmt.Errorf("%w: %q", models.ErrUnknownSection, section)
		return result, result.Err
	}
	if customerId == "" {
		result.Err = ErrNoActiveCustomer
		return result, result.Err
	}

	draft := o.store.Current()
	req, cached, err := buildRequest(draft, customerId, section)
	if err != nil {
		result.Err = err
		return result, err
	}
	if len(req.Photos) == 0 {
		result.Skipped = true
		result.Record = cached.Clone()
		return result, nil
	}

	ctx, cid := utils.EnsureCorrelationId(ctx)
	ctx, span := config.Tracer().Start(ctx, "upload.SubmitSection", trace.WithAttributes(
		attribute.String("customer_id", customerId),
		attribute.String("section", string(section)),
		attribute.Int("photos", len(req.Photos)),
	))
	defer span.End()

	fields := logrus.Fields{
		"module":         "upload",
		"section":        section,
		"customer_id":    customerId,
		"correlation_id": cid,
	}
	record, err := o.api.UploadPhotos(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(logger, "upload", "SubmitSection", "uploading section photos", fields, err)
		result.Err = &UploadError{Section: section, Err: err}
		return result, result.Err
	}
	if missing := unconfirmedSlots(record, req); len(missing) > 0 {
		err := &surveyapi.NetworkError{Op: "upload photos", Err: ErrUploadNotConfirmed}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(logger, "upload", "SubmitSection", "checking upload response", logrus.Fields{
			"section":     section,
			"customer_id": customerId,
			"unconfirmed": missing,
		}, err)
		result.Err = &UploadError{Section: section, Err: err}
		return result, result.Err
	}

	if _, err := o.store.Update(ctx, func(d *models.DraftState) error {
		reconcile.ApplyUpload(d, section, record)
		return nil
	}); err != nil {
		// the in-memory draft already reflects the upload
		logger.WithFields(fields).Warn("section uploaded but draft not persisted: " + err.Error())
	}

	logger.WithFields(fields).WithField("photos", len(req.Photos)).Info("section uploaded")
	result.Record = record
	result.Uploaded = len(req.Photos)
	return result, nil
}

// unconfirmedSlots lists the sent slots the returned record does not confirm.
func unconfirmedSlots(record *models.SectionRecord, req surveyapi.UploadRequest) []string {
	var missing []string
	for _, photo := range req.Photos {
		if _, ok := record.Photo(photo.Slot); !ok {
			missing = append(missing, photo.Slot)
		}
	}
	return missing
}

func buildRequest(draft models.DraftState, customerId string, section models.SectionId) (surveyapi.UploadRequest, *models.SectionRecord, error) {
	req := surveyapi.UploadRequest{CustomerId: customerId, Section: section}
	slots := models.SlotsFor(section, draft.Customer.PlantType)
	cached := draft.Sections[section]
	if len(slots) == 0 {
		return req, cached, &ValidationError{
			Section: section,
			Reason:  fmt.Sprintf("no photo slots for plant type %q", draft.Customer.PlantType),
		}
	}

	var missing, unreadable []string
	for _, slot := range slots {
		_, pending := draft.Pending(section, slot)
		_, confirmed := cached.Photo(slot)
		if !pending && !confirmed {
			missing = append(missing, slot)
		}
	}
	if len(missing) > 0 {
		return req, cached, &ValidationError{Section: section, Missing: missing}
	}

	defined := make(map[string]bool, len(slots))
	for _, slot := range slots {
		defined[slot] = true
	}
	for _, p := range draft.PendingPhotos(section, slots) {
		// payloads left from a previous plant type are not sent
		if !defined[p.Slot] {
			continue
		}
		mimeType, data, err := utils.DecodeDataURL(p.DataURL)
		if err != nil {
			unreadable = append(unreadable, p.Slot)
			continue
		}
		req.Photos = append(req.Photos, surveyapi.PhotoUpload{
			Slot:        p.Slot,
			Filename:    fmt.Sprintf("%s_%d%s", section, len(req.Photos), utils.ExtensionFromMimeType(mimeType)),
			ContentType: mimeType,
			Data:        data,
			Geolocation: p.Geolocation,
		})
	}
	if len(unreadable) > 0 {
		return req, cached, &ValidationError{Section: section, Unreadable: unreadable}
	}
	return req, cached, nil
}

// SubmitAll submits every section with pending photos, one after another,
// and keeps going past failures.
func (o *Orchestrator) SubmitAll(ctx context.Context) (BatchResult, error) {
	draft := o.store.Current()
	if !draft.HasActiveCustomer() {
		return BatchResult{}, ErrNoActiveCustomer
	}
	ctx, _ = utils.EnsureCorrelationId(ctx)

	batch := BatchResult{Results: []Result{}, Failed: []models.SectionId{}}
	succeeded := 0
	for _, section := range draft.PendingSections() {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		if !section.IsValid() {
			continue
		}
		result, err := o.SubmitSection(ctx, draft.CurrentCustomerId, section)
		batch.Results = append(batch.Results, result)
		if err != nil {
			batch.Failed = append(batch.Failed, section)
			continue
		}
		succeeded++
	}

	batch.Status = BatchStatusSuccess
	if len(batch.Failed) > 0 && succeeded == 0 {
		batch.Status = BatchStatusFailed
	} else if len(batch.Failed) > 0 {
		batch.Status = BatchStatusPartial
	}
	config.GetLogger().WithFields(logrus.Fields{
		"module":      "upload",
		"customer_id": draft.CurrentCustomerId,
		"attempted":   len(batch.Results),
		"failed":      len(batch.Failed),
		"status":      batch.Status,
	}).Info("submit all finished")
	return batch, nil
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
