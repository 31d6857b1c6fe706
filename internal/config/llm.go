package config

// LLMConfig configures the model boundary. The engine is provider-agnostic;
// Provider selects an adapter registered with the llm.Factory.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}
