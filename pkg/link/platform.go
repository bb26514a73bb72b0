// Platform registration for URL-based detection.

package link

import "sync"

// Detector recognizes profile URLs for one platform.
// Each adapter package registers itself via Register() in an init() function.
type Detector interface {
	// Tag returns the platform tag this detector reports.
	Tag() Platform

	// Match returns true if the URL belongs to this platform.
	Match(url string) bool
}

var (
	registryMu sync.RWMutex
	registry   []Detector
	byTag      = make(map[Platform]Detector)
)

// Register adds a detector to the global registry.
func Register(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()

	tag := d.Tag()
	if _, exists := byTag[tag]; exists {
		panic("platform already registered: " + string(tag))
	}
	registry = append(registry, d)
	byTag[tag] = d
}

// Detectors returns all registered detectors in registration order.
func Detectors() []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Detector, len(registry))
	copy(result, registry)
	return result
}

// Detect returns the tag of the first registered platform matching the URL,
// or Generic if none match.
func Detect(url string) Platform {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, d := range registry {
		if d.Match(url) {
			return d.Tag()
		}
	}
	return Generic
}

// Normalize fills in the platform of an entry whose icon tag is missing or generic,
// using the registered detectors.
func Normalize(e Entry) Entry {
	if e.Platform == "" || e.Platform == Generic {
		e.Platform = Detect(e.URL)
	}
	if e.State == "" {
		e.State = Unenriched
	}
	return e
}
