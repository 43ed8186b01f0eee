package constants

// Provider names accepted in the "provider" request field and LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultChatChannel is used when a chat client does not name a channel.
const DefaultChatChannel = "general"
