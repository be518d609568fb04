package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk YAML catalog format.
type catalogFile struct {
	Version string  `yaml:"version"`
	Models  []Entry `yaml:"models"`
}

// LoadCatalog reads a YAML catalog file and returns its entries and version.
func LoadCatalog(path string) ([]Entry, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read catalog: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, "", fmt.Errorf("parse catalog: %w", err)
	}
	if cf.Version == "" {
		return nil, "", fmt.Errorf("catalog %s: missing version", path)
	}
	if err := Validate(cf.Models); err != nil {
		return nil, "", fmt.Errorf("catalog %s: %w", path, err)
	}
	return cf.Models, cf.Version, nil
}

// DefaultCatalogVersion is the version of the built-in catalog.
const DefaultCatalogVersion = "1.0.0"

// DefaultCatalog returns the built-in model catalog, ranked by price tier
// (rank 1 = most expensive). Pricing is per 1k tokens.
func DefaultCatalog() []Entry {
	return []Entry{
		{
			ID:          "gpt-4-turbo",
			DisplayName: "GPT-4 Turbo",
			Provider:    "openai",
			GatewaySlug: "@openai/gpt-4-turbo",
			Rank:        1,
			Capabilities: Capabilities{
				ContextWindow:     128000,
				FunctionCalling:   true,
				JSONMode:          true,
				Vision:            true,
				Streaming:         true,
				LatencyTier:       LatencyMedium,
				ReliabilityTier:   ReliabilityHigh,
				Strengths:         []string{"reasoning", "coding", "analysis", "complex_tasks"},
				KnownFailureModes: []string{"expensive", "slower_than_gpt4o"},
			},
			Pricing: Pricing{
				InputPer1K:   0.01,
				OutputPer1K:  0.03,
				RateLimitRPM: 500,
				RateLimitTPM: 30000,
			},
			Confidence: 0.95,
			SourceURLs: []string{"https://openai.com/pricing"},
		},
		{
			ID:          "gpt-4o",
			DisplayName: "GPT-4o",
			Provider:    "openai",
			GatewaySlug: "@openai/gpt-4o",
			Rank:        2,
			Capabilities: Capabilities{
				ContextWindow:   128000,
				FunctionCalling: true,
				JSONMode:        true,
				Vision:          true,
				Streaming:       true,
				LatencyTier:     LatencyFast,
				ReliabilityTier: ReliabilityHigh,
				Strengths:       []string{"reasoning", "vision", "general", "multimodal"},
			},
			Pricing: Pricing{
				InputPer1K:   0.005,
				OutputPer1K:  0.015,
				RateLimitRPM: 500,
				RateLimitTPM: 30000,
			},
			Confidence: 0.95,
			SourceURLs: []string{"https://openai.com/pricing"},
		},
		{
			ID:          "claude-3-sonnet",
			DisplayName: "Claude 3 Sonnet",
			Provider:    "anthropic",
			GatewaySlug: "@anthropic/claude-3-sonnet-20240229",
			Rank:        3,
			Capabilities: Capabilities{
				ContextWindow:   200000,
				FunctionCalling: true,
				JSONMode:        false,
				Vision:          true,
				Streaming:       true,
				LatencyTier:     LatencyMedium,
				ReliabilityTier: ReliabilityHigh,
				Strengths:       []string{"reasoning", "coding", "analysis", "general"},
			},
			Pricing: Pricing{
				InputPer1K:   0.003,
				OutputPer1K:  0.015,
				RateLimitRPM: 1000,
				RateLimitTPM: 80000,
			},
			Confidence: 0.95,
			SourceURLs: []string{"https://www.anthropic.com/pricing"},
		},
		{
			ID:          "grok-2",
			DisplayName: "Grok 2",
			Provider:    "grok",
			GatewaySlug: "@grok/grok-2",
			Rank:        4,
			Capabilities: Capabilities{
				ContextWindow:   131072,
				FunctionCalling: true,
				JSONMode:        true,
				Vision:          false,
				Streaming:       true,
				LatencyTier:     LatencyMedium,
				ReliabilityTier: ReliabilityMedium,
				Strengths:       []string{"reasoning", "creative", "general"},
			},
			Pricing: Pricing{
				InputPer1K:   0.002,
				OutputPer1K:  0.01,
				RateLimitRPM: 500,
				RateLimitTPM: 60000,
			},
			Confidence: 0.9,
			SourceURLs: []string{"https://x.ai/api"},
		},
		{
			ID:          "gpt-3.5-turbo",
			DisplayName: "GPT-3.5 Turbo",
			Provider:    "openai",
			GatewaySlug: "@openai/gpt-3.5-turbo",
			Rank:        5,
			Capabilities: Capabilities{
				ContextWindow:     16385,
				FunctionCalling:   true,
				JSONMode:          true,
				Vision:            false,
				Streaming:         true,
				LatencyTier:       LatencyFast,
				ReliabilityTier:   ReliabilityHigh,
				Strengths:         []string{"general", "fast", "cost_effective", "high_volume"},
				KnownFailureModes: []string{"less_reasoning", "shorter_context"},
			},
			Pricing: Pricing{
				InputPer1K:   0.0005,
				OutputPer1K:  0.0015,
				RateLimitRPM: 3500,
				RateLimitTPM: 90000,
			},
			Confidence: 0.95,
			SourceURLs: []string{"https://openai.com/pricing"},
		},
		{
			ID:          "claude-3-haiku",
			DisplayName: "Claude 3 Haiku",
			Provider:    "bedrock",
			GatewaySlug: "@bedrock/anthropic.claude-3-haiku-20240307-v1:0",
			Rank:        6,
			Capabilities: Capabilities{
				ContextWindow:   200000,
				FunctionCalling: true,
				JSONMode:        false,
				Vision:          true,
				Streaming:       true,
				LatencyTier:     LatencyFast,
				ReliabilityTier: ReliabilityMedium,
				Strengths:       []string{"fast", "cost_effective", "general"},
			},
			Pricing: Pricing{
				InputPer1K:   0.00025,
				OutputPer1K:  0.00125,
				RateLimitRPM: 1000,
				RateLimitTPM: 100000,
			},
			Confidence: 0.9,
			SourceURLs: []string{"https://aws.amazon.com/bedrock/pricing/"},
		},
		{
			ID:          "gpt-4o-mini",
			DisplayName: "GPT-4o Mini",
			Provider:    "openai",
			GatewaySlug: "@openai/gpt-4o-mini",
			Rank:        7,
			Capabilities: Capabilities{
				ContextWindow:     128000,
				FunctionCalling:   true,
				JSONMode:          true,
				Vision:            true,
				Streaming:         true,
				LatencyTier:       LatencyFast,
				ReliabilityTier:   ReliabilityHigh,
				Strengths:         []string{"general", "reasoning", "creative", "cost_effective"},
				KnownFailureModes: []string{"less_capable_than_gpt4o"},
			},
			Pricing: Pricing{
				InputPer1K:   0.00015,
				OutputPer1K:  0.0006,
				RateLimitRPM: 1000,
				RateLimitTPM: 100000,
			},
			Confidence: 0.95,
			SourceURLs: []string{"https://openai.com/pricing"},
		},
	}
}
