// Package inapp recognizes embedded social-app browsers from the User-Agent header.
//
// Pages opened inside TikTok, Instagram or Facebook often cannot download files or
// open external links, so visitors are told to switch to a real browser.
package inapp

import "regexp"

// Kind names the embedding app.
type Kind string

// Browser kinds.
const (
	None           Kind = ""
	TikTok         Kind = "tiktok"
	Instagram      Kind = "instagram"
	Facebook       Kind = "facebook"
	AndroidWebView Kind = "android-webview"
	Forced         Kind = "debug"
)

// OS is the visitor's platform, used to pick instructions.
type OS string

// Operating systems.
const (
	IOS     OS = "ios"
	Android OS = "android"
	Other   OS = "other"
)

// Result is a classification.
type Result struct {
	Kind Kind `json:"kind,omitempty"`
	OS   OS   `json:"os"`
}

// InApp reports whether the visitor should see the open-in-browser banner.
func (r Result) InApp() bool { return r.Kind != None }

var (
	iosPattern       = regexp.MustCompile(`iPad|iPhone|iPod`)
	androidPattern   = regexp.MustCompile(`(?i)android`)
	tiktokPattern    = regexp.MustCompile(`(?i)TikTok|Musical_ly|Bytedance`)
	instagramPattern = regexp.MustCompile(`(?i)Instagram`)
	facebookPattern  = regexp.MustCompile(`(?i)FBAN|FBAV|FB_IAB`)
	webViewPattern   = regexp.MustCompile(`(?i)\bwv\b`)
)

// Classify inspects a User-Agent string.
func Classify(ua string) Result {
	r := Result{OS: Other}
	switch {
	case iosPattern.MatchString(ua):
		r.OS = IOS
	case androidPattern.MatchString(ua):
		r.OS = Android
	}

	switch {
	case tiktokPattern.MatchString(ua):
		r.Kind = TikTok
	case instagramPattern.MatchString(ua):
		r.Kind = Instagram
	case facebookPattern.MatchString(ua):
		r.Kind = Facebook
	case r.OS == Android && webViewPattern.MatchString(ua):
		r.Kind = AndroidWebView
	}
	return r
}

// ClassifyRequest is Classify with the debug override: force marks the result in-app
// regardless of the User-Agent.
func ClassifyRequest(ua string, force bool) Result {
	r := Classify(ua)
	if force && r.Kind == None {
		r.Kind = Forced
	}
	return r
}
