package surveyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxErrorBody = 4096

// Client talks to the field survey backend.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func NewClientFromEnv() *Client {
	return NewClient(config.APIBaseURL(), config.APITimeout())
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken attaches a session token, if the backend issued one on login.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

func (c *Client) CreateCustomer(ctx context.Context, input models.NewCustomer) (*models.Customer, error) {
	var out models.Customer
	if err := c.doJSON(ctx, "create customer", http.MethodPost, "/customers", nil, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchCustomers lists matches; an empty filter lists every customer.
func (c *Client) SearchCustomers(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, error) {
	var out []models.Customer
	if err := c.doJSON(ctx, "search customers", http.MethodGet, "/customers", filter.Query(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Customer{}
	}
	return out, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var out models.Customer
	if err := c.doJSON(ctx, "get customer", http.MethodGet, "/customers/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, input models.UpdateCustomer) (*models.Customer, error) {
	var out models.Customer
	if err := c.doJSON(ctx, "update customer", http.MethodPut, "/customers/"+url.PathEscape(id), nil, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LatestCustomer returns nil without error when there is no customer yet.
func (c *Client) LatestCustomer(ctx context.Context) (*models.Customer, error) {
	var out *models.Customer
	err := c.doJSON(ctx, "latest customer", http.MethodGet, "/customers/latest", nil, nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.ID == "" {
		return nil, nil
	}
	return out, nil
}

func (c *Client) DeletePhoto(ctx context.Context, customerId, photoId string) error {
	path := "/photos/" + url.PathEscape(customerId) + "/" + url.PathEscape(photoId)
	return c.doJSON(ctx, "delete photo", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) DeleteAllPhotos(ctx context.Context, customerId string) error {
	return c.doJSON(ctx, "delete all photos", http.MethodDelete, "/photos/"+url.PathEscape(customerId), nil, nil, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.doJSON(ctx, "login", http.MethodPost, "/login", nil, LoginRequest{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	if out.Token != "" {
		c.SetToken(out.Token)
	}
	return &out, nil
}

// UploadPhotos posts one section as multipart: files under "photos" with
// "section", "photoTypes" and "geolocations" aligned to the files.
func (c *Client) UploadPhotos(ctx context.Context, req UploadRequest) (*models.SectionRecord, error) {
	const op = "upload photos"
	ctx, span := c.startSpan(ctx, op,
		attribute.String("customer_id", req.CustomerId),
		attribute.String("section", string(req.Section)),
		attribute.Int("photos", len(req.Photos)),
	)
	defer span.End()

	body, contentType, err := encodeUpload(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out UploadResponse
	err = c.do(ctx, op, http.MethodPost, "/photos/"+url.PathEscape(req.CustomerId), nil, body, contentType, &out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out.Record(), nil
}

func encodeUpload(req UploadRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("section", string(req.Section)); err != nil {
		return nil, "", err
	}
	slots := make([]string, 0, len(req.Photos))
	locations := make([]*models.LocationRecord, 0, len(req.Photos))
	for i, p := range req.Photos {
		filename := p.Filename
		if filename == "" {
			filename = fmt.Sprintf("photo_%d.jpeg", i)
		}
		contentType := p.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos"; filename="%s"`, escapeQuotes(filename)))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p.Data); err != nil {
			return nil, "", err
		}
		slots = append(slots, p.Slot)
		locations = append(locations, p.Geolocation)
	}
	photoTypes, err := utils.MarshalToJSON(slots)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("photoTypes", photoTypes); err != nil {
		return nil, "", err
	}
	geolocations, err := utils.MarshalToJSON(locations)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("geolocations", geolocations); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// FetchImage downloads a hosted photo by absolute URL.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	const op = "fetch image"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", &NetworkError{Op: op, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, "", &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, utils.MaxPhotoSizeBytes+1))
	if err != nil {
		return nil, "", &NetworkError{Op: op, Err: err}
	}
	if int64(len(data)) > utils.MaxPhotoSizeBytes {
		return nil, "", &NetworkError{Op: op, Err: fmt.Errorf("image exceeds %d bytes", utils.MaxPhotoSizeBytes)}
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, params url.Values, in any, out any) error {
	ctx, span := c.startSpan(ctx, op, attribute.String("http.method", method), attribute.String("path", path))
	defer span.End()

	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	err := c.do(ctx, op, method, path, params, body, contentType, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body io.Reader, contentType string, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		req.Header.Set("x-correlation-id", cid)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func errorMessage(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch v := parsed.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case nil:
		default:
			if raw, err := json.Marshal(v); err == nil {
				return string(raw)
			}
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "no response body"
	}
	return msg
}

func (c *Client) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return config.Tracer().Start(ctx, "surveyapi."+strings.ReplaceAll(op, " ", "_"), trace.WithAttributes(attrs...))
}
