package project

import (
	"fmt"
	"regexp"
	"strings"
)

var appNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// SanitizeAppName turns a user-supplied app name into a safe identifier
// usable in package names and archive filenames.
func SanitizeAppName(name string) string {
	name = strings.TrimSpace(name)
	name = appNameSanitizer.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "GeneratedApp"
	}
	return name
}

// StarterTemplate returns the built-in Android project FileSet used when
// the generative model returns nothing parseable. It mirrors a minimal
// single-activity gradle project.
func StarterTemplate(appName string) FileSet {
	appName = SanitizeAppName(appName)
	pkg := "com.example." + strings.ToLower(appName)

	return FileSet{
		"settings.gradle": fmt.Sprintf("rootProject.name = '%s'\ninclude ':app'\n", appName),
		"build.gradle": `buildscript {
    repositories {
        google()
        mavenCentral()
    }
    dependencies {
        classpath 'com.android.tools.build:gradle:8.1.0'
    }
}

allprojects {
    repositories {
        google()
        mavenCentral()
    }
}
`,
		"app/build.gradle": fmt.Sprintf(`apply plugin: 'com.android.application'

android {
    namespace '%s'
    compileSdk 34

    defaultConfig {
        applicationId "%s"
        minSdk 24
        targetSdk 34
        versionCode 1
        versionName "1.0"
    }
}

dependencies {
    implementation 'androidx.appcompat:appcompat:1.6.1'
    implementation 'com.google.android.material:material:1.9.0'
}
`, pkg, pkg),
		"app/src/main/AndroidManifest.xml": fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android">
    <application
        android:label="%s"
        android:theme="@style/Theme.AppCompat.Light">
        <activity android:name=".MainActivity" android:exported="true">
            <intent-filter>
                <action android:name="android.intent.action.MAIN" />
                <category android:name="android.intent.category.LAUNCHER" />
            </intent-filter>
        </activity>
    </application>
</manifest>
`, appName),
		fmt.Sprintf("app/src/main/java/%s/MainActivity.java", strings.ReplaceAll(pkg, ".", "/")): fmt.Sprintf(`package %s;

import android.os.Bundle;
import androidx.appcompat.app.AppCompatActivity;

public class MainActivity extends AppCompatActivity {
    @Override
    protected void onCreate(Bundle savedInstanceState) {
        super.onCreate(savedInstanceState);
        setContentView(R.layout.activity_main);
    }
}
`, pkg),
		"app/src/main/res/layout/activity_main.xml": `<?xml version="1.0" encoding="utf-8"?>
<LinearLayout xmlns:android="http://schemas.android.com/apk/res/android"
    android:layout_width="match_parent"
    android:layout_height="match_parent"
    android:orientation="vertical"
    android:gravity="center">

    <TextView
        android:layout_width="wrap_content"
        android:layout_height="wrap_content"
        android:text="@string/app_greeting" />
</LinearLayout>
`,
		"app/src/main/res/values/strings.xml": fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<resources>
    <string name="app_name">%s</string>
    <string name="app_greeting">Hello from %s</string>
</resources>
`, appName, appName),
	}
}
