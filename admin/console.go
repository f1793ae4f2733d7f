// Package admin backs the back-office page: customer lookup, photo
// cleanup, downloads and exports.
package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("customer not found")

// API is the part of the backend the console calls.
type API interface {
	Login(ctx context.Context, username, password string) (*surveyapi.LoginResponse, error)
	SearchCustomers(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	LatestCustomer(ctx context.Context) (*models.Customer, error)
	DeletePhoto(ctx context.Context, customerId, photoId string) error
	DeleteAllPhotos(ctx context.Context, customerId string) error
	FetchImage(ctx context.Context, imageURL string) ([]byte, string, error)
}

type Console struct {
	api API
}

func NewConsole(api API) *Console {
	return &Console{api: api}
}

type CardPhoto struct {
	Title       string                 `json:"title"`
	DriveId     string                 `json:"driveId"`
	ImageUrl    string                 `json:"imageUrl"`
	Filename    string                 `json:"filename"`
	Geolocation *models.LocationRecord `json:"geolocation,omitempty"`
}

type CardSection struct {
	Id     models.SectionId     `json:"id"`
	Title  string               `json:"title"`
	Status models.SectionStatus `json:"status"`
	Photos []CardPhoto          `json:"photos"`
}

// Card is one customer as the admin page shows it.
type Card struct {
	CustomerId string        `json:"customerId"`
	Name       string        `json:"name"`
	District   string        `json:"district"`
	PlantType  string        `json:"plantType"`
	Mobile     string        `json:"mobile"`
	Technician string        `json:"technician"`
	Address    string        `json:"address"`
	CreatedAt  time.Time     `json:"createdAt"`
	Sections   []CardSection `json:"sections"`
}

// DownloadFilename is the saved name for a section's photos,
// <first word of name>_<section>_<plantType>.jpg.
func DownloadFilename(customer *models.Customer, section models.SectionId) string {
	return fmt.Sprintf("%s_%s_%s.jpg", utils.FirstWord(customer.Name), section, customer.PlantType)
}

// BuildCard lists every section in fixed order; sections the backend has
// no record for show as pending with no photos.
func BuildCard(customer *models.Customer) Card {
	card := Card{
		CustomerId: customer.ID,
		Name:       customer.Name,
		District:   customer.District,
		PlantType:  customer.PlantType,
		Mobile:     customer.Mobile,
		Technician: customer.Technician,
		Address:    customer.Address,
		CreatedAt:  customer.CreatedAt,
	}
	for _, id := range models.AllSections {
		section := CardSection{Id: id, Title: id.Title(), Status: models.SectionStatusPending, Photos: []CardPhoto{}}
		if record := customer.Section(id); record != nil {
			if record.Status != "" {
				section.Status = record.Status
			}
			filename := DownloadFilename(customer, id)
			for _, p := range record.Photos {
				section.Photos = append(section.Photos, CardPhoto{
					Title:       p.Title,
					DriveId:     p.DriveId,
					ImageUrl:    p.ImageUrl,
					Filename:    filename,
					Geolocation: p.Geolocation,
				})
			}
		}
		card.Sections = append(card.Sections, section)
	}
	return card
}

func (c *Console) Login(ctx context.Context, username, password string) error {
	res, err := c.api.Login(ctx, username, password)
	if err != nil {
		config.LogError(config.GetLogger(), "admin", "Login", "logging in", username, err)
		return err
	}
	config.GetLogger().WithFields(logrus.Fields{"module": "admin", "user": username}).Info(res.Message)
	return nil
}

// Search returns every match; an empty filter lists all customers.
func (c *Console) Search(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, error) {
	customers, err := c.api.SearchCustomers(ctx, filter)
	if err != nil {
		config.LogError(config.GetLogger(), "admin", "Search", "searching customers", filter, err)
		return nil, err
	}
	return customers, nil
}

// Latest returns ErrNotFound when no customer exists yet.
func (c *Console) Latest(ctx context.Context) (*models.Customer, error) {
	customer, err := c.api.LatestCustomer(ctx)
	if err != nil {
		config.LogError(config.GetLogger(), "admin", "Latest", "fetching latest customer", nil, err)
		return nil, err
	}
	if customer == nil {
		return nil, ErrNotFound
	}
	return customer, nil
}

func (c *Console) Card(ctx context.Context, customerId string) (Card, error) {
	customer, err := c.api.GetCustomer(ctx, customerId)
	if err != nil {
		if surveyapi.IsNotFound(err) {
			return Card{}, fmt.Errorf("%w: %s", ErrNotFound, customerId)
		}
		return Card{}, err
	}
	return BuildCard(customer), nil
}

// DeletePhoto removes one stored photo and returns the refreshed card.
func (c *Console) DeletePhoto(ctx context.Context, customerId, driveId string) (Card, error) {
	if err := c.api.DeletePhoto(ctx, customerId, driveId); err != nil {
		config.LogError(config.GetLogger(), "admin", "DeletePhoto", "deleting photo", driveId, err)
		return Card{}, err
	}
	config.GetLogger().WithFields(logrus.Fields{
		"module":      "admin",
		"customer_id": customerId,
		"drive_id":    driveId,
	}).Info("photo deleted")
	return c.Card(ctx, customerId)
}

func (c *Console) DeleteAllPhotos(ctx context.Context, customerId string) (Card, error) {
	if err := c.api.DeleteAllPhotos(ctx, customerId); err != nil {
		config.LogError(config.GetLogger(), "admin", "DeleteAllPhotos", "deleting photos", customerId, err)
		return Card{}, err
	}
	config.GetLogger().WithFields(logrus.Fields{"module": "admin", "customer_id": customerId}).Info("all photos deleted")
	return c.Card(ctx, customerId)
}

// Download saves a section's photos into dir and returns the written paths.
// Photos after the first get a _2, _3 ... suffix since they share a name.
func (c *Console) Download(ctx context.Context, customerId string, section models.SectionId, dir string) ([]string, error) {
	if !section.IsValid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownSection, section)
	}
	customer, err := c.api.GetCustomer(ctx, customerId)
	if err != nil {
		return nil, err
	}
	record := customer.Section(section)
	if record == nil {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	base := DownloadFilename(customer, section)
	ext := filepath.Ext(base)
	var paths []string
	n := 0
	for _, p := range record.Photos {
		if p.ImageUrl == "" {
			continue
		}
		data, _, err := c.api.FetchImage(ctx, p.ImageUrl)
		if err != nil {
			config.LogError(config.GetLogger(), "admin", "Download", "fetching image", p.ImageUrl, err)
			return paths, err
		}
		n++
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base[:len(base)-len(ext)], n, ext)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
