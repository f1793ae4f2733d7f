package main

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/surveyapi/surveyapitest"
	"github.com/urfave/cli/v2"
)

func TestAskYesNo(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		if got := askYesNo(strings.NewReader(tc.input), &out, "Proceed?"); got != tc.expected {
			t.Fatalf("askYesNo(%q) expected %v, got %v", tc.input, tc.expected, got)
		}
		if !strings.Contains(out.String(), "Proceed? [y/N]") {
			t.Fatalf("prompt not written: %q", out.String())
		}
	}
}

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"fieldkit"}, args...))
	return out.String(), err
}

func TestTechnicianFlow(t *testing.T) {
	srv := surveyapitest.NewServer()
	defer srv.Close()
	dir := t.TempDir()
	t.Setenv("DRAFT_STORE", "file")
	t.Setenv("DRAFT_FILE", filepath.Join(dir, "draft.json"))
	t.Setenv("GEO_DISABLED", "true")
	api := srv.APIURL()

	if _, err := runApp(t, "", "--api", api, "technician", "set",
		"name=A", "district=D", "plantType=3kw", "mobile=9990001111", "address=X"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := runApp(t, "", "--api", api, "technician", "create")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "state: capturing-photos") {
		t.Fatalf("unexpected create output %q", out)
	}

	photo := filepath.Join(dir, "wifi.jpg")
	if err := imaging.Save(imaging.New(20, 20, color.White), photo); err != nil {
		t.Fatalf("save photo: %v", err)
	}
	if _, err := runApp(t, "", "--api", api, "technician", "capture", "--section", "wifi", "--slot", "WiFi Configuration", "--file", photo); err != nil {
		t.Fatalf("capture: %v", err)
	}
	out, err = runApp(t, "", "--api", api, "technician", "submit")
	if err != nil {
		t.Fatalf("submit: %v (%s)", err, out)
	}
	if !strings.Contains(out, "wifi: uploaded 1 photos") {
		t.Fatalf("unexpected submit output %q", out)
	}

	if _, err := runApp(t, "n\n", "--api", api, "technician", "clear-all"); err == nil {
		t.Fatalf("declined confirmation should abort")
	}
	if _, err := os.Stat(filepath.Join(dir, "draft.json")); err != nil {
		t.Fatalf("draft removed despite declined confirmation: %v", err)
	}
	if _, err := runApp(t, "", "--api", api, "technician", "clear-all", "--yes"); err != nil {
		t.Fatalf("clear-all: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "draft.json")); !os.IsNotExist(err) {
		t.Fatalf("draft file should be gone, got %v", err)
	}
}

func TestAdminExport(t *testing.T) {
	srv := surveyapitest.NewServer()
	defer srv.Close()
	srv.Seed(models.Customer{Name: "Ravi Kumar", District: "Mysuru", PlantType: "5kw", Mobile: "9990001111", Address: "X"})
	out := filepath.Join(t.TempDir(), "customers.xlsx")

	if _, err := runApp(t, "", "--api", srv.APIURL(), "admin", "export", "--out", out, "--district", "mys"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Fatalf("workbook not written: %v", err)
	}
	if _, err := runApp(t, "", "--api", srv.APIURL(), "admin", "export", "--out", "x.csv"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestPlantTypes(t *testing.T) {
	out, err := runApp(t, "", "technician", "plant-types")
	if err != nil {
		t.Fatalf("plant-types: %v", err)
	}
	if !strings.Contains(out, "8kw\t15 panel serials") {
		t.Fatalf("unexpected output %q", out)
	}
}
