package provider

// Vendor holds the defaults for a known API.
type Vendor struct {
	Name        string
	Backend     Backend
	BaseURL     string
	KeyEnv      string
	DocsURL     string
	KeyOptional bool
}

var vendors = map[string]Vendor{
	"openai": {
		Backend: BackendOpenAI, BaseURL: "https://api.openai.com/v1",
		KeyEnv: "OPENAI_API_KEY", DocsURL: "https://platform.openai.com/account/api-keys",
	},
	"deepseek": {
		Backend: BackendOpenAI, BaseURL: "https://api.deepseek.com/v1",
		KeyEnv: "DEEPSEEK_API_KEY", DocsURL: "https://platform.deepseek.com/api_keys",
	},
	"groq": {
		Backend: BackendOpenAI, BaseURL: "https://api.groq.com/openai/v1",
		KeyEnv: "GROQ_API_KEY", DocsURL: "https://console.groq.com/keys",
	},
	"mistral": {
		Backend: BackendOpenAI, BaseURL: "https://api.mistral.ai/v1",
		KeyEnv: "MISTRAL_API_KEY", DocsURL: "https://console.mistral.ai/api-keys",
	},
	"xai": {
		Backend: BackendOpenAI, BaseURL: "https://api.x.ai/v1",
		KeyEnv: "XAI_API_KEY", DocsURL: "https://console.x.ai",
	},
	"together": {
		Backend: BackendOpenAI, BaseURL: "https://api.together.xyz/v1",
		KeyEnv: "TOGETHER_API_KEY", DocsURL: "https://api.together.ai/settings/api-keys",
	},
	"fireworks": {
		Backend: BackendOpenAI, BaseURL: "https://api.fireworks.ai/inference/v1",
		KeyEnv: "FIREWORKS_API_KEY", DocsURL: "https://fireworks.ai/account/api-keys",
	},
	"hyperbolic": {
		Backend: BackendOpenAI, BaseURL: "https://api.hyperbolic.xyz/v1",
		KeyEnv: "HYPERBOLIC_API_KEY", DocsURL: "https://app.hyperbolic.xyz/settings",
	},
	"moonshot": {
		Backend: BackendOpenAI, BaseURL: "https://api.moonshot.cn/v1",
		KeyEnv: "MOONSHOT_API_KEY", DocsURL: "https://platform.moonshot.cn/console/api-keys",
	},
	"perplexity": {
		Backend: BackendOpenAI, BaseURL: "https://api.perplexity.ai",
		KeyEnv: "PERPLEXITY_API_KEY", DocsURL: "https://www.perplexity.ai/settings/api",
	},
	"ollama": {
		Backend: BackendOpenAI, BaseURL: "http://localhost:11434/v1", KeyOptional: true,
	},
	"anthropic": {
		Backend: BackendFantasy, KeyEnv: "ANTHROPIC_API_KEY",
		DocsURL: "https://console.anthropic.com/settings/keys",
	},
	"google": {
		Backend: BackendFantasy, KeyEnv: "GOOGLE_API_KEY",
		DocsURL: "https://aistudio.google.com/app/apikey",
	},
	"azure": {
		Backend: BackendFantasy, KeyEnv: "AZURE_OPENAI_KEY", DocsURL: "https://aka.ms/oai/access",
	},
	"azure-ad": {
		Backend: BackendFantasy, KeyEnv: "AZURE_OPENAI_KEY", DocsURL: "https://aka.ms/oai/access",
	},
	"openrouter": {
		Backend: BackendFantasy, KeyEnv: "OPENROUTER_API_KEY", DocsURL: "https://openrouter.ai/keys",
	},
	"vercel": {
		Backend: BackendFantasy, KeyEnv: "VERCEL_API_KEY", DocsURL: "https://vercel.com/dashboard/tokens",
	},
	"bedrock": {
		Backend: BackendFantasy, KeyOptional: true,
	},
}

// LookupVendor returns the defaults for a known API name.
func LookupVendor(api string) (Vendor, bool) {
	v, ok := vendors[api]
	if ok {
		v.Name = api
	}
	return v, ok
}
