package detector

import (
	"strings"
	"time"

	"go-image-forensics/internal/logger"

	"github.com/sirupsen/logrus"
)

// metadataScanner implements MetadataScanner
type metadataScanner struct{}

// NewMetadataScanner creates a scanner covering the JPEG, PNG, WebP and TIFF
// metadata containers.
func NewMetadataScanner() MetadataScanner {
	return &metadataScanner{}
}

var (
	softwareFields = []string{"Software", "ProcessingSoftware", "XMP:CreatorTool", "PNG:Software"}
	modifiedFields = []string{"DateTime", "XMP:ModifyDate", "PNG:ModificationTime"}
	createdFields  = []string{"DateTimeOriginal", "DateTimeDigitized", "XMP:CreateDate", "PNG:Creation Time"}
	cameraFields   = []string{"ExposureTime", "FocalLength", "FNumber", "ISOSpeedRatings"}
	gpsFields      = []string{"GPSLatitude", "GPSLongitude"}
)

// timestampLayouts are tried in order when parsing stored dates
var timestampLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05Z07:00",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Scan extracts tags from data and evaluates the anomaly rules. It never
// fails: unreadable containers simply contribute no tags.
func (s *metadataScanner) Scan(data []byte) MetadataReport {
	format := FormatNone
	if len(data) >= MinHeaderLength {
		format, _ = DetectFormat(data)
	}

	report := MetadataReport{
		Container: format,
		Tags:      extractTags(format, data),
	}
	report.Software = firstTag(report.Tags, softwareFields...)
	report.Make = report.Tags["Make"]
	report.Model = report.Tags["Model"]
	report.HasGPS = firstTag(report.Tags, gpsFields...) != ""
	report.SuspiciousTags = evaluateRules(format, report.Tags)

	return report
}

// extractTags dispatches to the container parser. Parser panics are
// recovered and whatever was collected so far is kept.
func extractTags(format Format, data []byte) (tags map[string]string) {
	tags = make(map[string]string)
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"container": format,
				"panic":     r,
			}).Debug("Recovered from metadata parser panic")
		}
	}()

	switch format {
	case FormatJPEG:
		scanJPEG(data, tags)
	case FormatPNG:
		scanPNG(data, tags)
	case FormatWebP:
		scanWebP(data, tags)
	case FormatTIFF:
		scanTIFF(data, tags)
	}
	return tags
}

// evaluateRules applies the anomaly rules in a fixed order. Each rule
// contributes at most one entry.
func evaluateRules(format Format, tags map[string]string) []string {
	suspicious := make([]string, 0, 4)

	if matchesAny(tags, softwareFields, EditingSoftware) {
		suspicious = append(suspicious, TagEditingSoftware)
	}

	modified, okModified := parseTimestamp(firstTag(tags, modifiedFields...))
	created, okCreated := parseTimestamp(firstTag(tags, createdFields...))
	if okModified && okCreated && modified.Before(created) {
		suspicious = append(suspicious, TagModifiedBeforeCreate)
	}

	if tags["Make"] == "" && tags["Model"] == "" && firstTag(tags, cameraFields...) != "" {
		suspicious = append(suspicious, TagInconsistentCamera)
	}

	if carriesMetadata(format) && len(tags) == 0 {
		suspicious = append(suspicious, TagMetadataStripped)
	}

	if matchesAny(tags, softwareFields, GeneratorSoftware) {
		suspicious = append(suspicious, TagGeneratorSoftware)
	}

	return suspicious
}

// carriesMetadata reports whether files of this family normally ship with
// descriptive tags
func carriesMetadata(format Format) bool {
	return format == FormatJPEG || format == FormatTIFF
}

// matchesAny reports whether any of the named tags contains one of names,
// ignoring case
func matchesAny(tags map[string]string, fields []string, names []string) bool {
	for _, field := range fields {
		value := strings.ToLower(tags[field])
		if value == "" {
			continue
		}
		for _, name := range names {
			if strings.Contains(value, name) {
				return true
			}
		}
	}
	return false
}

func firstTag(tags map[string]string, fields ...string) string {
	for _, field := range fields {
		if v := tags[field]; v != "" {
			return v
		}
	}
	return ""
}

// parseTimestamp parses the date formats found in EXIF, XMP and PNG text
func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(strings.Trim(value, "\x00"))
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func debugParse(container, segment string, err error) {
	logger.WithFields(logrus.Fields{
		"container": container,
		"segment":   segment,
	}).WithError(err).Debug("Skipping unreadable metadata segment")
}
