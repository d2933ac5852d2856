package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestPrompt represents a generation request fixture
type TestPrompt struct {
	Prompt  string `json:"prompt"`
	AppName string `json:"app_name"`
}

// Default test fixtures
var (
	DefaultTestPrompt = TestPrompt{
		Prompt:  "A simple habit tracking app with a list of daily habits",
		AppName: "Habit Tracker",
	}

	// DefaultProjectFiles is a minimal but buildable-looking Android
	// project layout used to stub model responses.
	DefaultProjectFiles = map[string]string{
		"settings.gradle":  "rootProject.name = 'HabitTracker'\ninclude ':app'\n",
		"build.gradle":     "// Top-level build file\n",
		"app/build.gradle": "apply plugin: 'com.android.application'\n",
		"app/src/main/AndroidManifest.xml": `<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.example.habittracker"/>`,
		"app/src/main/java/com/example/habittracker/MainActivity.java": "package com.example.habittracker;\n\npublic class MainActivity {}\n",
	}
)

// NewModelStubServer starts an httptest server that mimics the hosted
// generation backend, answering every request with the given file map as
// the model's JSON output. The caller owns Close via t.Cleanup.
func NewModelStubServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		payload, err := json.Marshal(files)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": string(payload)})
	}))
	t.Cleanup(server.Close)
	return server
}
