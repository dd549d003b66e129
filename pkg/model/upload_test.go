package model

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestAnalysisSelection_CloneDoesNotAlias(t *testing.T) {
	orig := AnalysisSelection{
		InitArgs:       map[string]any{"frame_shift": 0.01},
		Postprocessors: []string{"cmvn"},
	}
	c := orig.Clone()
	c.InitArgs["frame_shift"] = 0.02
	c.Postprocessors[0] = "vad"

	if orig.InitArgs["frame_shift"] != 0.01 {
		t.Errorf("original init arg mutated: %v", orig.InitArgs["frame_shift"])
	}
	if orig.Postprocessors[0] != "cmvn" {
		t.Errorf("original postprocessors mutated: %v", orig.Postprocessors)
	}
}

func TestAnalysisSelection_WithPostprocessor(t *testing.T) {
	a := AnalysisSelection{Postprocessors: []string{"vad"}}

	added := a.WithPostprocessor("cmvn", true)
	if want := []string{"cmvn", "vad"}; !reflect.DeepEqual(added.Postprocessors, want) {
		t.Errorf("add = %v, want %v", added.Postprocessors, want)
	}
	again := added.WithPostprocessor("cmvn", true)
	if len(again.Postprocessors) != 2 {
		t.Errorf("duplicate add produced %v", again.Postprocessors)
	}
	removed := again.WithPostprocessor("vad", false)
	if want := []string{"cmvn"}; !reflect.DeepEqual(removed.Postprocessors, want) {
		t.Errorf("remove = %v, want %v", removed.Postprocessors, want)
	}
	if !a.HasPostprocessor("vad") || a.HasPostprocessor("cmvn") {
		t.Errorf("receiver mutated: %v", a.Postprocessors)
	}
}

func TestTempCredentials_DecodeAndExpiry(t *testing.T) {
	body := `{"AccessKeyId":"AK","SecretAccessKey":"SK","SessionToken":"ST","Expiration":"2024-05-01T12:00:00Z"}`
	var c TempCredentials
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.AccessKeyID != "AK" || c.SecretAccessKey != "SK" || c.SessionToken != "ST" {
		t.Errorf("decoded = %+v", c)
	}

	exp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if c.Expired(exp.Add(-time.Minute)) {
		t.Error("should not be expired before expiration")
	}
	if !c.Expired(exp) {
		t.Error("should be expired at expiration")
	}
	if (TempCredentials{}).Expired(exp) {
		t.Error("zero expiration should never expire")
	}
}
