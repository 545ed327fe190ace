/*
DESCRIPTION
  raspivid_test.go tests the raspivid Device.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package raspivid

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vidrec/recorder/config"
)

func TestGoodAWBGains(t *testing.T) {
	tests := []struct {
		gains  string
		expect bool
	}{
		{gains: "-0.6,1.7", expect: false},
		{gains: "0.6,-1.6", expect: false},
		{gains: "1.3,0.3", expect: true},
		{gains: "0.8,", expect: false},
		{gains: "0.3", expect: false},
		{gains: "0,0", expect: true},
		{gains: ",1.4", expect: false},
	}

	for i, test := range tests {
		got := goodAWBGains(test.gains)
		if got != test.expect {
			t.Errorf("did not get expected result for test: %d\nWant: %v, Got: %v\n", i, test.expect, got)
		}
	}
}

func TestSetDefaults(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true) // Discard logs.
	d := New(l)

	// An empty camera config is usable; every bad field is defaulted and
	// reported.
	err := d.Set(config.Config{})
	if err == nil {
		t.Fatal("expected a MultiError reporting defaulted fields")
	}

	if d.cfg.Width != defaultWidth {
		t.Errorf("width was not defaulted\nGot: %d\nWant: %d", d.cfg.Width, defaultWidth)
	}
	if d.cfg.FrameRate != defaultFrameRate {
		t.Errorf("framerate was not defaulted\nGot: %d\nWant: %d", d.cfg.FrameRate, defaultFrameRate)
	}
	if d.cfg.Exposure != defaultExposure {
		t.Errorf("exposure was not defaulted\nGot: %s\nWant: %s", d.cfg.Exposure, defaultExposure)
	}
	if d.cfg.Quantization != defaultQuantization {
		t.Errorf("quantization was not defaulted\nGot: %d\nWant: %d", d.cfg.Quantization, defaultQuantization)
	}
}

func TestSetModes(t *testing.T) {
	l := logging.New(logging.Debug, &bytes.Buffer{}, true) // Discard logs.

	tests := []struct {
		exposure string
		awb      string
		wantExp  string
		wantAWB  string
	}{
		{exposure: "night", awb: "cloud", wantExp: "night", wantAWB: "cloud"},
		{exposure: "nightvision", awb: "cloud", wantExp: defaultExposure, wantAWB: "cloud"},
		{exposure: "night", awb: "cloudy", wantExp: "night", wantAWB: defaultAutoWhiteBalance},
	}

	for i, test := range tests {
		d := New(l)
		d.Set(config.Config{Camera: config.Camera{
			Exposure:         test.exposure,
			AutoWhiteBalance: test.awb,
		}})

		if d.cfg.Exposure != test.wantExp {
			t.Errorf("did not get expected exposure for test %d\nGot: %s\nWant: %s", i, d.cfg.Exposure, test.wantExp)
		}
		if d.cfg.AutoWhiteBalance != test.wantAWB {
			t.Errorf("did not get expected awb mode for test %d\nGot: %s\nWant: %s", i, d.cfg.AutoWhiteBalance, test.wantAWB)
		}
	}
}

func TestCreateArgs(t *testing.T) {
	tests := []struct {
		cam  config.Camera
		want []string
	}{
		{
			cam: config.Camera{
				Height:           1080,
				Width:            1440,
				Bitrate:          1000,
				FrameRate:        25,
				Rotation:         45,
				Brightness:       50,
				Saturation:       20,
				Contrast:         30,
				Sharpness:        -30,
				AutoWhiteBalance: "auto",
				Exposure:         "auto",
				EV:               3,
				AWBGains:         "0.9,1.2",
				ISO:              300,
				MinFrames:        100,
				CBR:              true,
			},
			want: []string{
				"--output", "-",
				"--nopreview",
				"--timeout", "0",
				"--width", "1440",
				"--height", "1080",
				"--bitrate", "1000000", // Convert from kbps to bps.
				"--framerate", "25",
				"--rotation", "45",
				"--brightness", "50",
				"--saturation", "20",
				"--sharpness", "-30",
				"--contrast", "30",
				"--awb", "auto",
				"--exposure", "auto",
				"--ISO", "300",
				"--codec", "H264",
				"--inline",
				"--intra", "100",
			},
		},
		{
			cam: config.Camera{
				Height:           1080,
				Width:            1440,
				Bitrate:          1000,
				FrameRate:        25,
				Rotation:         45,
				Brightness:       50,
				Saturation:       20,
				Contrast:         30,
				Sharpness:        -30,
				AutoWhiteBalance: "off",
				Exposure:         "off",
				EV:               3,
				AWBGains:         "0.9,1.2",
				ISO:              100,
				MinFrames:        100,
				CBR:              true,
			},
			want: []string{
				"--output", "-",
				"--nopreview",
				"--timeout", "0",
				"--width", "1440",
				"--height", "1080",
				"--bitrate", "1000000", // Convert from kbps to bps.
				"--framerate", "25",
				"--rotation", "45",
				"--brightness", "50",
				"--saturation", "20",
				"--sharpness", "-30",
				"--contrast", "30",
				"--awb", "off",
				"--exposure", "off",
				"--ev", "3",
				"--awbgains", "0.9,1.2",
				"--codec", "H264",
				"--inline",
				"--intra", "100",
			},
		},
		{
			cam: config.Camera{
				ID:               "1",
				Height:           720,
				Width:            1280,
				Quantization:     35,
				FrameRate:        30,
				Brightness:       50,
				AutoWhiteBalance: "auto",
				Exposure:         "auto",
				ISO:              100,
				MinFrames:        100,
				Stabilisation:    true,
			},
			want: []string{
				"--output", "-",
				"--nopreview",
				"--timeout", "0",
				"--width", "1280",
				"--height", "720",
				"--bitrate", "0",
				"--framerate", "30",
				"--rotation", "0",
				"--brightness", "50",
				"--saturation", "0",
				"--sharpness", "0",
				"--contrast", "0",
				"--awb", "auto",
				"--exposure", "auto",
				"--vstab",
				"--camselect", "1",
				"--codec", "H264",
				"--inline",
				"--intra", "100",
				"-qp", "35",
			},
		},
	}

	for i, test := range tests {
		got := (&Raspivid{cfg: test.cam}).createArgs()
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("did not get expected args list for test: %d (-want +got):\n%s", i, diff)
		}
	}
}
