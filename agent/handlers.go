package agent

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kamnsolar/field_capture/geo"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/reconcile"
	"github.com/kamnsolar/field_capture/session"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/upload"
	"github.com/kamnsolar/field_capture/utils"
)

type resultResponse struct {
	upload.Result
	Error string `json:"error,omitempty"`
}

type batchResponse struct {
	Status  string             `json:"status"`
	Failed  []models.SectionId `json:"failed"`
	Results []resultResponse   `json:"results"`
}

func toResultResponse(r upload.Result) resultResponse {
	out := resultResponse{Result: r}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func statusFor(err error) int {
	var sessionInvalid *session.ValidationError
	var uploadInvalid *upload.ValidationError
	var serverErr *surveyapi.ServerError
	var networkErr *surveyapi.NetworkError
	switch {
	case errors.As(err, &sessionInvalid), errors.As(err, &uploadInvalid),
		errors.Is(err, models.ErrUnknownSection), errors.Is(err, models.ErrUnknownSlot),
		errors.Is(err, session.ErrUnknownField), errors.Is(err, utils.ErrorNotAnImage):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrCustomerNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoActiveCustomer), errors.Is(err, session.ErrCustomerActive),
		errors.Is(err, session.ErrNotEditing), errors.Is(err, session.ErrSlotConfirmed):
		return http.StatusConflict
	case errors.As(err, &serverErr), errors.As(err, &networkErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeView answers with the view, or with the error and the view the
// session was left in.
func writeView(c *gin.Context, view session.View, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}
	body := gin.H{"error": err.Error(), "view": view}
	var invalid *session.ValidationError
	if errors.As(err, &invalid) {
		body["fields"] = invalid.Fields
	}
	c.JSON(statusFor(err), body)
}

func sectionParam(c *gin.Context) (models.SectionId, bool) {
	section, err := models.ParseSectionId(c.Param("section"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return section, true
}

func viewHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sess.View(c.Request.Context()))
	}
}

func restoreHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sess.Restore(c.Request.Context()))
	}
}

// formHandler applies a {"field": "value"} object in field-name order.
func formHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req map[string]string
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		fields := make([]string, 0, len(req))
		for field := range req {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		view := sess.View(c.Request.Context())
		for _, field := range fields {
			var err error
			view, err = sess.SetFormField(c.Request.Context(), field, req[field])
			if err != nil {
				writeView(c, view, err)
				return
			}
		}
		c.JSON(http.StatusOK, view)
	}
}

func clearAllHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := sess.ClearAll(c.Request.Context())
		writeView(c, view, err)
	}
}

func createCustomerHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := sess.CreateCustomer(c.Request.Context())
		if err == nil {
			c.JSON(http.StatusCreated, view)
			return
		}
		writeView(c, view, err)
	}
}

func loadExistingHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.CustomerFilter
		if err := c.ShouldBindJSON(&filter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		view, err := sess.LoadExisting(c.Request.Context(), filter)
		writeView(c, view, err)
	}
}

func editDetailsHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := sess.EditDetails(c.Request.Context())
		writeView(c, view, err)
	}
}

func saveDetailsHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := sess.SaveDetails(c.Request.Context())
		writeView(c, view, err)
	}
}

func refreshHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := sess.Refresh(c.Request.Context())
		writeView(c, view, err)
	}
}

func changeCustomerHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := sess.ChangeCustomer(c.Request.Context())
		writeView(c, view, err)
	}
}

// reportedFix reads an optional caller-reported position from the form.
func reportedFix(c *gin.Context) (geo.Locator, bool) {
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(c.PostForm("latitude")), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(c.PostForm("longitude")), 64)
	if errLat != nil || errLng != nil {
		return nil, false
	}
	accuracy, _ := strconv.ParseFloat(strings.TrimSpace(c.PostForm("accuracy")), 64)
	return geo.StaticLocator{Fix: geo.Fix{Latitude: lat, Longitude: lng, Accuracy: accuracy}}, true
}

// capturePhotoHandler takes the image as multipart field "photo".
func capturePhotoHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := sectionParam(c)
		if !ok {
			return
		}
		file, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		if file.Size > utils.MaxPhotoSizeBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo is too large"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable photo"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, utils.MaxPhotoSizeBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable photo"})
			return
		}

		ctx := c.Request.Context()
		if strings.EqualFold(c.PostForm("skipGeolocation"), "true") {
			ctx = utils.SetSkipGeolocationInContext(ctx, true)
		}
		var extra []geo.Locator
		if locator, ok := reportedFix(c); ok {
			extra = append(extra, locator)
		}
		view, err := sess.CapturePhoto(ctx, section, c.Param("slot"), data, extra...)
		writeView(c, view, err)
	}
}

func removePhotoHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := sectionParam(c)
		if !ok {
			return
		}
		view, err := sess.RemovePhoto(c.Request.Context(), section, c.Param("slot"))
		writeView(c, view, err)
	}
}

// thumbnailHandler previews a pending photo; confirmed photos redirect to
// the hosted image.
func thumbnailHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := sectionParam(c)
		if !ok {
			return
		}
		view := sess.View(c.Request.Context())
		sv, _ := view.Section(section)
		var slot *reconcile.SlotView
		for i := range sv.Slots {
			if sv.Slots[i].Name == c.Param("slot") {
				slot = &sv.Slots[i]
				break
			}
		}
		switch {
		case slot == nil || slot.State == reconcile.SlotEmpty:
			c.JSON(http.StatusNotFound, gin.H{"error": "no photo for slot"})
		case slot.State == reconcile.SlotConfirmed && slot.ImageUrl != "":
			c.Redirect(http.StatusFound, slot.ImageUrl)
		default:
			_, data, err := utils.DecodeDataURL(slot.DataURL)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "stored photo is unreadable"})
				return
			}
			thumb, err := utils.Thumbnail(data)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate thumbnail"})
				return
			}
			c.Data(http.StatusOK, "image/jpeg", thumb)
		}
	}
}

func clearSectionHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := sectionParam(c)
		if !ok {
			return
		}
		view, err := sess.ClearSection(c.Request.Context(), section)
		writeView(c, view, err)
	}
}

func submitSectionHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		section, ok := sectionParam(c)
		if !ok {
			return
		}
		result, err := sess.SubmitSection(c.Request.Context(), section)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": toResultResponse(result)})
			return
		}
		c.JSON(http.StatusOK, toResultResponse(result))
	}
}

// submitAllHandler answers 207 when only some sections were uploaded.
func submitAllHandler(sess *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		batch, err := sess.SubmitAll(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		resp := batchResponse{Status: batch.Status, Failed: batch.Failed, Results: make([]resultResponse, 0, len(batch.Results))}
		if resp.Failed == nil {
			resp.Failed = []models.SectionId{}
		}
		for _, r := range batch.Results {
			resp.Results = append(resp.Results, toResultResponse(r))
		}
		status := http.StatusOK
		switch batch.Status {
		case upload.BatchStatusPartial:
			status = http.StatusMultiStatus
		case upload.BatchStatusFailed:
			status = http.StatusBadGateway
		}
		c.JSON(status, resp)
	}
}
