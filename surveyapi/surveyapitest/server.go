// Package surveyapitest runs an in-memory field survey backend for tests.
package surveyapitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kamnsolar/field_capture/models"
)

type RecordedUpload struct {
	CustomerId   string
	Section      models.SectionId
	PhotoTypes   []string
	Geolocations []*models.LocationRecord
	Filenames    []string
	Files        [][]byte
}

type Server struct {
	*httptest.Server

	Username string
	Password string

	mu           sync.Mutex
	customers    map[string]*models.Customer
	files        map[string][]byte
	uploads      []RecordedUpload
	failSections map[models.SectionId]int
	requests     map[string]int
	now          func() time.Time
}

func NewServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Username:     "admin",
		Password:     "secret",
		customers:    map[string]*models.Customer{},
		files:        map[string][]byte{},
		failSections: map[models.SectionId]int{},
		requests:     map[string]int{},
		now:          time.Now,
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// APIURL is the base URL clients should be configured with.
func (s *Server) APIURL() string {
	return s.Server.URL + "/api"
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		s.mu.Lock()
		s.requests[c.Request.Method+" "+c.FullPath()]++
		s.mu.Unlock()
		c.Next()
	})
	api := r.Group("/api")
	api.POST("/login", s.login)
	api.POST("/customers", s.createCustomer)
	api.GET("/customers", s.listCustomers)
	api.GET("/customers/latest", s.latestCustomer)
	api.GET("/customers/:id", s.getCustomer)
	api.PUT("/customers/:id", s.updateCustomer)
	api.POST("/photos/:customerId", s.uploadPhotos)
	api.DELETE("/photos/:customerId/:photoId", s.deletePhoto)
	api.DELETE("/photos/:customerId", s.deleteAllPhotos)
	r.GET("/files/:driveId", s.serveFile)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// FailSection makes uploads for section answer with status until cleared
// with status 0.
func (s *Server) FailSection(section models.SectionId, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failSections, section)
		return
	}
	s.failSections[section] = status
}

// Requests counts handled requests by "METHOD /route/pattern".
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

func (s *Server) UploadCount() int {
	return s.Requests("POST /api/photos/:customerId")
}

func (s *Server) Uploads() []RecordedUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedUpload, len(s.uploads))
	copy(out, s.uploads)
	return out
}

// Seed stores a customer as-is, assigning an id when missing.
func (s *Server) Seed(c models.Customer) models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	stored := c
	s.customers[c.ID] = &stored
	return stored
}

func (s *Server) Customer(id string) (models.Customer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return models.Customer{}, false
	}
	return *c, true
}

// StoreFile hosts bytes and returns their image URL.
func (s *Server) StoreFile(data []byte) (driveId, imageUrl string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeFileLocked(data)
}

func (s *Server) storeFileLocked(data []byte) (string, string) {
	driveId := uuid.NewString()
	s.files[driveId] = data
	return driveId, s.Server.URL + "/files/" + driveId
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Username != s.Username || req.Password != s.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
}

func (s *Server) createCustomer(c *gin.Context) {
	var req models.NewCustomer
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Name == "" || req.District == "" || req.PlantType == "" || req.Mobile == "" || req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}
	customer := s.Seed(models.Customer{
		Name:      req.Name,
		District:  req.District,
		PlantType: req.PlantType,
		Mobile:    req.Mobile,
		Address:   req.Address,
	})
	c.JSON(http.StatusCreated, customer)
}

func (s *Server) sortedCustomersLocked() []models.Customer {
	out := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Server) listCustomers(c *gin.Context) {
	name := strings.ToLower(strings.TrimSpace(c.Query("name")))
	district := strings.ToLower(strings.TrimSpace(c.Query("district")))
	mobile := strings.TrimSpace(c.Query("mobile"))

	s.mu.Lock()
	all := s.sortedCustomersLocked()
	s.mu.Unlock()

	out := []models.Customer{}
	for _, cust := range all {
		if name != "" && !strings.Contains(strings.ToLower(cust.Name), name) {
			continue
		}
		if district != "" && !strings.Contains(strings.ToLower(cust.District), district) {
			continue
		}
		if mobile != "" && !strings.Contains(cust.Mobile, mobile) {
			continue
		}
		out = append(out, cust)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) latestCustomer(c *gin.Context) {
	s.mu.Lock()
	all := s.sortedCustomersLocked()
	s.mu.Unlock()
	if len(all) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No customers found"})
		return
	}
	c.JSON(http.StatusOK, all[0])
}

func (s *Server) getCustomer(c *gin.Context) {
	cust, ok := s.Customer(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (s *Server) updateCustomer(c *gin.Context) {
	var req models.UpdateCustomer
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cust, ok := s.customers[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	cust.Name = req.Name
	cust.District = req.District
	cust.PlantType = req.PlantType
	cust.Mobile = req.Mobile
	cust.Address = req.Address
	cust.Technician = req.Technician
	cust.UpdatedAt = s.now().UTC()
	c.JSON(http.StatusOK, *cust)
}

func (s *Server) uploadPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body"})
		return
	}
	section, err := models.ParseSectionId(c.PostForm("section"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid section"})
		return
	}
	var photoTypes []string
	if err := json.Unmarshal([]byte(c.PostForm("photoTypes")), &photoTypes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid photoTypes"})
		return
	}
	var geolocations []*models.LocationRecord
	if raw := c.PostForm("geolocations"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &geolocations); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geolocations"})
			return
		}
	}
	files := form.File["photos"]
	if len(files) == 0 || len(files) != len(photoTypes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photos and photoTypes must align"})
		return
	}

	recorded := RecordedUpload{
		CustomerId:   c.Param("customerId"),
		Section:      section,
		PhotoTypes:   photoTypes,
		Geolocations: geolocations,
	}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		recorded.Filenames = append(recorded.Filenames, fh.Filename)
		recorded.Files = append(recorded.Files, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.failSections[section]; ok {
		c.JSON(status, gin.H{"error": "upload rejected for " + string(section)})
		return
	}
	cust, ok := s.customers[recorded.CustomerId]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	s.uploads = append(s.uploads, recorded)

	record := cust.Section(section).Clone()
	if record == nil {
		record = &models.SectionRecord{Status: models.SectionStatusPending}
	}
	for i, title := range photoTypes {
		driveId, imageUrl := s.storeFileLocked(recorded.Files[i])
		ref := models.PhotoRef{Title: title, DriveId: driveId, ImageUrl: imageUrl}
		if i < len(geolocations) {
			ref.Geolocation = geolocations[i]
		}
		replaced := false
		for j := range record.Photos {
			if record.Photos[j].Title == title {
				record.Photos[j] = ref
				replaced = true
			}
		}
		if !replaced {
			record.Photos = append(record.Photos, ref)
		}
	}
	record.Status = sectionStatus(section, cust.PlantType, record)
	cust.SetSection(section, record)
	c.JSON(http.StatusOK, record)
}

func sectionStatus(section models.SectionId, plantType string, record *models.SectionRecord) models.SectionStatus {
	slots := models.SlotsFor(section, plantType)
	if len(slots) == 0 {
		return models.SectionStatusPending
	}
	for _, slot := range slots {
		if _, ok := record.Photo(slot); !ok {
			return models.SectionStatusPending
		}
	}
	return models.SectionStatusCompleted
}

func (s *Server) deletePhoto(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cust, ok := s.customers[c.Param("customerId")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	photoId := c.Param("photoId")
	for _, section := range models.AllSections {
		record := cust.Section(section)
		if record == nil {
			continue
		}
		for i, p := range record.Photos {
			if p.DriveId == photoId {
				record.Photos = append(record.Photos[:i], record.Photos[i+1:]...)
				record.Status = sectionStatus(section, cust.PlantType, record)
				delete(s.files, photoId)
				c.JSON(http.StatusOK, gin.H{"message": "Photo deleted"})
				return
			}
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found"})
}

func (s *Server) deleteAllPhotos(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cust, ok := s.customers[c.Param("customerId")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	for _, section := range models.AllSections {
		if record := cust.Section(section); record != nil {
			for _, p := range record.Photos {
				delete(s.files, p.DriveId)
			}
		}
		cust.SetSection(section, nil)
	}
	c.JSON(http.StatusOK, gin.H{"message": "All photos deleted"})
}

func (s *Server) serveFile(c *gin.Context) {
	s.mu.Lock()
	data, ok := s.files[c.Param("driveId")]
	s.mu.Unlock()
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
