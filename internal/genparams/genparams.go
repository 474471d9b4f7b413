package genparams

import "fmt"

// PromptPair is an enriched prompt plus its negative prompt.
type PromptPair struct {
	Prompt         string
	NegativePrompt string
}

// Size is an image size in pixels.
type Size struct {
	Width  int
	Height int
}

// Qualities lists the recognized quality preset names.
func Qualities() []string {
	return []string{"low", "medium", "high", "none"}
}

// Ratios lists the recognized aspect ratio names.
func Ratios() []string {
	return []string{"1:1", "9:7", "7:9", "19:13", "13:19", "7:4", "4:7", "12:5", "5:12"}
}

// Enhance wraps the user prompt in the given quality preset. Unknown
// presets fall back to "none", which only appends the baseline negative
// prompt.
func Enhance(prompt, quality string) PromptPair {
	presets := map[string]PromptPair{
		"low": {
			Prompt:         fmt.Sprintf("%s,  masterpiece, best quality, very aesthetic, absurdres", prompt),
			NegativePrompt: "nsfw, lowres, (bad), text, error, fewer, extra, missing, worst quality, jpeg artifacts, low quality, watermark, unfinished, displeasing, oldest, early, chromatic aberration, signature, extra digits, artistic error, username, scan, [abstract]",
		},
		"medium": {
			Prompt:         fmt.Sprintf("%s, (masterpiece), best quality, very aesthetic, perfect face", prompt),
			NegativePrompt: "nsfw, (low quality, worst quality:1.2), very displeasing, 3d, watermark, signature, ugly, poorly drawn",
		},
		"high": {
			Prompt:         fmt.Sprintf("%s, (masterpiece), (best quality), (ultra-detailed), very aesthetic, illustration, disheveled hair, perfect composition, moist skin, intricate details", prompt),
			NegativePrompt: "nsfw, longbody, lowres, bad anatomy, bad hands, missing fingers, pubic hair, extra digit, fewer digits, cropped, worst quality, low quality, very displeasing",
		},
		"none": {
			Prompt:         prompt,
			NegativePrompt: "nsfw, lowres",
		},
	}

	if pair, ok := presets[quality]; ok {
		return pair
	}
	return presets["none"]
}

// Ratio maps an aspect ratio name to its SDXL-native size. Unknown
// ratios fall back to 1:1.
func Ratio(ratio string) Size {
	sizes := map[string]Size{
		"1:1":   {Width: 1024, Height: 1024},
		"9:7":   {Width: 1152, Height: 896},
		"7:9":   {Width: 896, Height: 1152},
		"19:13": {Width: 1216, Height: 832},
		"13:19": {Width: 832, Height: 1216},
		"7:4":   {Width: 1344, Height: 768},
		"4:7":   {Width: 768, Height: 1344},
		"12:5":  {Width: 1536, Height: 640},
		"5:12":  {Width: 640, Height: 1536},
	}

	if size, ok := sizes[ratio]; ok {
		return size
	}
	return sizes["1:1"]
}
