package extraction

// schemaHint is appended to the system prompt for providers without
// schema-constrained decoding.
const schemaHint = `
{
  "ticker": "string",
  "doc": {"form":"10-Q|10-K","filingDate":"YYYY-MM-DD","sourceUrl":"string"},
  "guidance":[{"metric":"string","period":"string","value":"string","rawQuote":"string","chunkId":"string"}],
  "forwardDrivers":[{"driver":"string","direction":"up|down|mixed","timeframe":"string","evidence":["chunkId"]}],
  "notableRisks":[{"risk":"string","severity":0-1,"evidence":["chunkId"]}]
}`

func str() map[string]interface{} {
	return map[string]interface{}{"type": "string"}
}

func evidence() map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": "chunk ids supporting the statement",
		"items":       str(),
	}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}

func array(items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": items}
}

// OutputSchema is the JSON schema sent with each extraction request
func OutputSchema() map[string]interface{} {
	return object([]string{"guidance", "forwardDrivers", "notableRisks"}, map[string]interface{}{
		"ticker": str(),
		"doc": object(nil, map[string]interface{}{
			"form":       map[string]interface{}{"type": "string", "enum": []string{"10-Q", "10-K"}},
			"filingDate": str(),
			"sourceUrl":  str(),
		}),
		"guidance": array(object([]string{"metric", "value"}, map[string]interface{}{
			"metric":   str(),
			"period":   str(),
			"value":    str(),
			"rawQuote": str(),
			"chunkId":  str(),
		})),
		"forwardDrivers": array(object([]string{"driver"}, map[string]interface{}{
			"driver":    str(),
			"direction": map[string]interface{}{"type": "string", "enum": []string{"up", "down", "mixed"}},
			"timeframe": str(),
			"evidence":  evidence(),
		})),
		"notableRisks": array(object([]string{"risk"}, map[string]interface{}{
			"risk":     str(),
			"severity": map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"evidence": evidence(),
		})),
	})
}
