// Package upscale implements the optional AI upscale pre-stage: frame
// extraction, batch upscaling through an external binary, and lossless
// reassembly into an intermediate the transcoder consumes. It also manages
// the upscaler tool cache (installs, versions, update checks).
package upscale

import (
	"os/exec"
	"sort"
)

// Definition describes one supported upscaler binary.
type Definition struct {
	Key          string   `json:"key"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Binary       string   `json:"binary"`
	Repo         string   `json:"repo"` // owner/name on GitHub
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
	ScaleOptions []int    `json:"scale_options"`
	BestFor      string   `json:"best_for"`
}

// Definitions is the supported upscaler set, keyed by the value stored in
// upscale plans. Anime4K is shader-based with no batch binary, so it cannot
// serve as a pre-stage and is not listed.
var Definitions = map[string]Definition{
	"realesrgan": {
		Key:          "realesrgan",
		Name:         "Real-ESRGAN",
		Description:  "Best for real-world content (photos, live action, films)",
		Binary:       "realesrgan-ncnn-vulkan",
		Repo:         "xinntao/Real-ESRGAN",
		Models:       []string{"realesrgan-x4plus", "realesrgan-x4plus-anime", "realesr-animevideov3"},
		DefaultModel: "realesrgan-x4plus",
		ScaleOptions: []int{2, 3, 4},
		BestFor:      "Movies, TV Shows, Home Videos",
	},
	"realcugan": {
		Key:          "realcugan",
		Name:         "Real-CUGAN",
		Description:  "Fast GPU upscaling, good balance of speed and quality",
		Binary:       "realcugan-ncnn-vulkan",
		Repo:         "nihui/realcugan-ncnn-vulkan",
		Models:       []string{"models-se", "models-pro", "models-nose"},
		DefaultModel: "models-se",
		ScaleOptions: []int{2, 3, 4},
		BestFor:      "Anime, Cartoons",
	},
	"waifu2x": {
		Key:          "waifu2x",
		Name:         "Waifu2x NCNN Vulkan",
		Description:  "Classic anime upscaler, GPU-accelerated via Vulkan",
		Binary:       "waifu2x-ncnn-vulkan",
		Repo:         "nihui/waifu2x-ncnn-vulkan",
		Models:       []string{"models-cunet", "models-upconv_7_anime_style_art_rgb"},
		DefaultModel: "models-cunet",
		ScaleOptions: []int{1, 2},
		BestFor:      "Anime, Illustrations",
	},
}

// Lookup returns the definition for a plan's upscaler key.
func Lookup(key string) (Definition, bool) {
	def, ok := Definitions[key]
	return def, ok
}

// DetectResult reports one upscaler's installation state.
type DetectResult struct {
	Definition
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Detect reports which upscalers are usable, preferring managed installs
// from the tool cache over $PATH lookups.
func Detect(tools *ToolManager) []DetectResult {
	keys := make([]string, 0, len(Definitions))
	for key := range Definitions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]DetectResult, 0, len(keys))
	for _, key := range keys {
		def := Definitions[key]
		result := DetectResult{Definition: def}
		if tools != nil {
			if installed, ok := tools.Installed(key); ok {
				result.Installed = true
				result.Path = installed.Path
				result.Version = installed.Version
				results = append(results, result)
				continue
			}
		}
		if path, err := exec.LookPath(def.Binary); err == nil {
			result.Installed = true
			result.Path = path
		}
		results = append(results, result)
	}
	return results
}
