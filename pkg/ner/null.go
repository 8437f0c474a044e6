package ner

import (
	"context"

	"github.com/NimaFathima/astrobiomers/pkg/common"
)

// NullBackend stands in for an optional backend that could not be built.
// It returns no mentions.
type NullBackend struct {
	name string
}

func NewNullBackend(name string) *NullBackend {
	return &NullBackend{name: name}
}

func (n *NullBackend) Name() string {
	return n.name
}

func (n *NullBackend) Extract(context.Context, string) ([]common.EntityMention, error) {
	return nil, nil
}
