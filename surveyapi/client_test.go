package surveyapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/surveyapi/surveyapitest"
)

func newClient(t *testing.T) (*surveyapi.Client, *surveyapitest.Server) {
	t.Helper()
	srv := surveyapitest.NewServer()
	t.Cleanup(srv.Close)
	return surveyapi.NewClient(srv.APIURL(), 5*time.Second), srv
}

func TestClient_CustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t)

	created, err := client.CreateCustomer(ctx, models.NewCustomer{Name: "Ravi Kumar", District: "Tumkur", PlantType: "4kw", Mobile: "9990001111", Address: "X"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected server id")
	}

	found, err := client.SearchCustomers(ctx, models.CustomerFilter{Name: "ravi"})
	if err != nil || len(found) != 1 || found[0].ID != created.ID {
		t.Fatalf("SearchCustomers: %v %+v", err, found)
	}
	none, err := client.SearchCustomers(ctx, models.CustomerFilter{District: "Mysore"})
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %v %v", none, err)
	}

	updated, err := client.UpdateCustomer(ctx, created.ID, models.UpdateCustomer{Name: "Ravi Kumar", District: "Tumkur", PlantType: "4kw", Mobile: "9990001111", Address: "Y", Technician: "Suresh"})
	if err != nil || updated.Technician != "Suresh" || updated.Address != "Y" {
		t.Fatalf("UpdateCustomer: %v %+v", err, updated)
	}

	latest, err := client.LatestCustomer(ctx)
	if err != nil || latest == nil || latest.ID != created.ID {
		t.Fatalf("LatestCustomer: %v %+v", err, latest)
	}
}

func TestClient_LatestCustomerEmpty(t *testing.T) {
	client, _ := newClient(t)
	latest, err := client.LatestCustomer(context.Background())
	if err != nil || latest != nil {
		t.Fatalf("expected nil, nil; got %+v %v", latest, err)
	}
}

func TestClient_ServerErrorCarriesMessage(t *testing.T) {
	client, _ := newClient(t)
	_, err := client.CreateCustomer(context.Background(), models.NewCustomer{Name: "A"})
	var se *surveyapi.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T %v", err, err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Message != "All fields are required" {
		t.Fatalf("unexpected server error %+v", se)
	}
	_, err = client.GetCustomer(context.Background(), "missing")
	if !surveyapi.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	client := surveyapi.NewClient(url, time.Second)
	_, err := client.SearchCustomers(context.Background(), models.CustomerFilter{})
	var ne *surveyapi.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
}

func TestClient_UnparseableBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>proxy page</html>"))
	}))
	defer srv.Close()
	client := surveyapi.NewClient(srv.URL, time.Second)
	_, err := client.GetCustomer(context.Background(), "x")
	var ne *surveyapi.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NetworkError, got %T %v", err, err)
	}
}

func TestClient_UploadPhotosMultipartShape(t *testing.T) {
	ctx := context.Background()
	client, srv := newClient(t)
	cust := srv.Seed(models.Customer{Name: "A", District: "D", PlantType: "3kw", Mobile: "1", Address: "X"})

	loc := &models.LocationRecord{Latitude: 1, Longitude: 2, Accuracy: 3, Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Address: "somewhere"}
	record, err := client.UploadPhotos(ctx, surveyapi.UploadRequest{
		CustomerId: cust.ID,
		Section:    models.SectionLA,
		Photos: []surveyapi.PhotoUpload{
			{Slot: "Lightning Arrestor", Filename: "la_0.jpg", Data: []byte{1, 2, 3}, Geolocation: loc},
			{Slot: "LA Earthing Connection", Filename: "la_1.jpg", Data: []byte{4, 5}},
		},
	})
	if err != nil {
		t.Fatalf("UploadPhotos: %v", err)
	}
	if record.Status != models.SectionStatusCompleted || len(record.Photos) != 2 {
		t.Fatalf("unexpected record %+v", record)
	}

	uploads := srv.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(uploads))
	}
	u := uploads[0]
	if u.Section != models.SectionLA || u.PhotoTypes[0] != "Lightning Arrestor" || u.Filenames[1] != "la_1.jpg" {
		t.Fatalf("unexpected upload %+v", u)
	}
	if len(u.Geolocations) != 2 || u.Geolocations[0] == nil || u.Geolocations[0].Address != "somewhere" || u.Geolocations[1] != nil {
		t.Fatalf("geolocations not aligned: %+v", u.Geolocations)
	}
	if string(u.Files[1]) != string([]byte{4, 5}) {
		t.Fatalf("file bytes changed in transit")
	}

	data, _, err := client.FetchImage(ctx, record.Photos[0].ImageUrl)
	if err != nil || len(data) != 3 {
		t.Fatalf("FetchImage: %v %v", err, data)
	}
}

func TestClient_DeletePhotos(t *testing.T) {
	ctx := context.Background()
	client, srv := newClient(t)
	cust := srv.Seed(models.Customer{Name: "A", District: "D", PlantType: "3kw", Mobile: "1", Address: "X"})
	record, err := client.UploadPhotos(ctx, surveyapi.UploadRequest{
		CustomerId: cust.ID,
		Section:    models.SectionWifi,
		Photos:     []surveyapi.PhotoUpload{{Slot: "WiFi Configuration", Data: []byte{1}}},
	})
	if err != nil {
		t.Fatalf("UploadPhotos: %v", err)
	}
	if err := client.DeletePhoto(ctx, cust.ID, record.Photos[0].DriveId); err != nil {
		t.Fatalf("DeletePhoto: %v", err)
	}
	got, _ := client.GetCustomer(ctx, cust.ID)
	if got.Wifi == nil || len(got.Wifi.Photos) != 0 || got.Wifi.Status != models.SectionStatusPending {
		t.Fatalf("photo not removed: %+v", got.Wifi)
	}
	if err := client.DeleteAllPhotos(ctx, cust.ID); err != nil {
		t.Fatalf("DeleteAllPhotos: %v", err)
	}
	got, _ = client.GetCustomer(ctx, cust.ID)
	if len(got.Sections()) != 0 {
		t.Fatalf("expected no sections, got %+v", got.Sections())
	}
}

func TestClient_Login(t *testing.T) {
	client, _ := newClient(t)
	if _, err := client.Login(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err := client.Login(context.Background(), "admin", "nope")
	if !surveyapi.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
