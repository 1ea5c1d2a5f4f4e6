package detector

// Fixed forensic parameters. Changing any of these changes every score the
// detector has ever produced, so they are compiled in rather than configured.
const (
	// RecompressQuality is the JPEG quality used for the ELA reference pass
	RecompressQuality = 90

	// Amplification stretches raw recompression deltas into a usable range
	Amplification = 10

	// FlagWeight is added to the score for every suspicious metadata tag
	FlagWeight = 0.15

	// MinHeaderLength is the shortest input the decoder will try to identify
	MinHeaderLength = 8
)

// Suspicious tag messages, one per metadata rule
const (
	TagEditingSoftware      = "edited with known image-editing software"
	TagModifiedBeforeCreate = "modification time precedes creation time"
	TagInconsistentCamera   = "inconsistent camera metadata"
	TagMetadataStripped     = "metadata stripped"
	TagGeneratorSoftware    = "generated by AI image software"
)

// EditingSoftware lists tool names matched case-insensitively against
// software and creator-tool tags.
var EditingSoftware = []string{
	"photoshop",
	"gimp",
	"lightroom",
	"paint.net",
	"paintshop",
	"pixelmator",
	"affinity photo",
	"photopea",
	"krita",
	"corel",
	"snapseed",
	"picsart",
	"facetune",
	"photoscape",
	"fotor",
	"luminar",
	"canva",
	"airbrush",
	"meitu",
}

// GeneratorSoftware lists image generators that sign their output
var GeneratorSoftware = []string{
	"stable diffusion",
	"midjourney",
	"dall-e",
	"dall·e",
	"firefly",
	"novelai",
	"comfyui",
	"automatic1111",
}
