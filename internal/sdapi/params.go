package sdapi

// Params are the generation parameters accepted by the txt2img endpoint.
type Params struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Steps          int     `json:"steps"`
	CfgScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Seed           int64   `json:"seed"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
	SamplerName    string  `json:"sampler_name"`
}

// DefaultParams returns the generation defaults: 24 steps, CFG 4.5,
// 1024x1024, random seed, single image, "Euler a" sampler.
func DefaultParams(prompt string) Params {
	return Params{
		Prompt:      prompt,
		Steps:       24,
		CfgScale:    4.5,
		Width:       1024,
		Height:      1024,
		Seed:        -1,
		BatchSize:   1,
		NIter:       1,
		SamplerName: "Euler a",
	}
}
