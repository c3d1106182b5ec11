package graph

import (
	"github.com/joknelid/golang-neo4j-bolt-connection/errors"
)

func errFieldCount(what string, want int, fields []interface{}) error {
	return errors.Protocol("%s structure expects %d fields, got %d", what, want, len(fields))
}

func errHydrate(msg string, args ...interface{}) error {
	return errors.Protocol(msg, args...)
}

func asInt64(what string, value interface{}) (int64, error) {
	v, ok := value.(int64)
	if !ok {
		return 0, errors.Protocol("%s is not an integer: %T", what, value)
	}
	return v, nil
}

func asString(what string, value interface{}) (string, error) {
	v, ok := value.(string)
	if !ok {
		return "", errors.Protocol("%s is not a string: %T", what, value)
	}
	return v, nil
}

func asMap(what string, value interface{}) (map[string]interface{}, error) {
	if value == nil {
		return nil, nil
	}
	v, ok := value.(map[string]interface{})
	if !ok {
		return nil, errors.Protocol("%s is not a map: %T", what, value)
	}
	return v, nil
}

func asStringSlice(what string, value interface{}) ([]string, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, errors.Protocol("%s is not a list: %T", what, value)
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.Protocol("%s item %d is not a string: %T", what, i, item)
		}
		out[i] = s
	}
	return out, nil
}

func asIntSlice(what string, value interface{}) ([]int, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, errors.Protocol("%s is not a list: %T", what, value)
	}
	out := make([]int, len(items))
	for i, item := range items {
		n, ok := item.(int64)
		if !ok {
			return nil, errors.Protocol("%s item %d is not an integer: %T", what, i, item)
		}
		out[i] = int(n)
	}
	return out, nil
}

func asNodeSlice(what string, value interface{}) ([]Node, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, errors.Protocol("%s is not a list: %T", what, value)
	}
	out := make([]Node, len(items))
	for i, item := range items {
		node, ok := item.(Node)
		if !ok {
			return nil, errors.Protocol("%s item %d is not a node: %T", what, i, item)
		}
		out[i] = node
	}
	return out, nil
}

func asUnboundRelationshipSlice(what string, value interface{}) ([]UnboundRelationship, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, errors.Protocol("%s is not a list: %T", what, value)
	}
	out := make([]UnboundRelationship, len(items))
	for i, item := range items {
		rel, ok := item.(UnboundRelationship)
		if !ok {
			return nil, errors.Protocol("%s item %d is not an unbound relationship: %T", what, i, item)
		}
		out[i] = rel
	}
	return out, nil
}
