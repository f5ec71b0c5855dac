package store

import (
	"encoding/json"
	"fmt"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
)

// marshalUnmet stores a requirement list in its attribute-map form.
func marshalUnmet(l interaction.List) (string, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("marshal unmet: %w", err)
	}
	return string(data), nil
}

func unmarshalUnmet(s string) (interaction.List, error) {
	var l interaction.List
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return interaction.List{}, fmt.Errorf("unmarshal unmet: %w", err)
	}
	return l, nil
}

func marshalGuarantees(g interaction.GuaranteeSet) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("marshal guarantees: %w", err)
	}
	return string(data), nil
}

func unmarshalGuarantees(s string) (interaction.GuaranteeSet, error) {
	var g interaction.GuaranteeSet
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return interaction.GuaranteeSet{}, fmt.Errorf("unmarshal guarantees: %w", err)
	}
	return g, nil
}
