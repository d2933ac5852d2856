package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAppName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "HabitTracker", want: "HabitTracker"},
		{name: "spaces_and_punctuation", in: "My Habit Tracker!", want: "My_Habit_Tracker"},
		{name: "empty_falls_back", in: "", want: "GeneratedApp"},
		{name: "only_symbols_falls_back", in: "!!!", want: "GeneratedApp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeAppName(tt.in))
		})
	}
}

func TestStarterTemplate(t *testing.T) {
	fs := StarterTemplate("Habit Tracker")

	require.NoError(t, fs.Validate())
	assert.Contains(t, fs, "settings.gradle")
	assert.Contains(t, fs, "app/build.gradle")
	assert.Contains(t, fs, "app/src/main/AndroidManifest.xml")
	assert.Contains(t, fs, "app/src/main/res/layout/activity_main.xml")

	// The activity lives under the sanitized package path.
	assert.Contains(t, fs, "app/src/main/java/com/example/habit_tracker/MainActivity.java")
	assert.Contains(t, fs["app/src/main/AndroidManifest.xml"], `android:label="Habit_Tracker"`)

	// Template materializes cleanly.
	require.NoError(t, Materialize(fs, t.TempDir()))
}
