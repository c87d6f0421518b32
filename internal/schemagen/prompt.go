package schemagen

import (
	"fmt"
	"unicode/utf8"

	"github.com/datasynth/datasynth/internal/apperr"
)

// charsPerToken roughly converts a token budget into a prompt size.
const charsPerToken = 4

const promptTemplate = `You are a data schema generator. Create a JSON schema for synthetic data generation using Python Faker library.

User Request: "%s"

Generate a JSON object with the following structure:
{
    "domain": "category_name",
    "fields": {
        "field_name_1": {
            "faker_method": "method_name",
            "parameters": {},
            "description": "field description"
        },
        "field_name_2": {
            "faker_method": "method_name",
            "parameters": {},
            "description": "field description"
        }
    }
}

Requirements:
1. Use only valid Faker methods (e.g., "name", "email", "address", "phone_number", "date", "text", "random_int", etc.)
2. Include 3-15 relevant fields based on the description
3. Set appropriate parameters for each Faker method
4. Infer the domain category (e.g., "ecommerce", "healthcare", "finance", "education", "social_media")
5. Ensure field names are descriptive and snake_case
6. Return ONLY the JSON object, no additional text

Example:
{
    "domain": "ecommerce",
    "fields": {
        "customer_name": {
            "faker_method": "name",
            "parameters": {},
            "description": "Customer full name"
        },
        "email": {
            "faker_method": "email",
            "parameters": {},
            "description": "Customer email address"
        },
        "order_total": {
            "faker_method": "pydecimal",
            "parameters": {"left_digits": 3, "right_digits": 2, "positive": true},
            "description": "Order total amount"
        }
    }
}`

// prompt embeds description into the schema request sent to the provider.
func (g *Generator) prompt(description string) (string, error) {
	p := fmt.Sprintf(promptTemplate, description)
	if n := utf8.RuneCountInString(p); n > g.maxTokens*charsPerToken {
		return "", apperr.Newf(apperr.KindValidation, "description is too long, would exceed token limit").
			With("prompt_length", n).With("limit", g.maxTokens*charsPerToken)
	}
	return p, nil
}
