/*
Copyright © 2023 Miguel Angel Ajo Pelayo <majopela@redhat.com>
*/
package main

import (
	"fmt"
	"strings"

	"github.com/jumpstarter-dev/jumpstarter/pkg/meta"
)

// parseSelector turns a "key=value,key2=value2" flag into a label filter,
// the same shape meta.Filter.String() renders back out.
func parseSelector(s string) (meta.Filter, error) {
	labels := map[string]string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return meta.Filter{Labels: labels}, nil
	}
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return meta.Filter{}, fmt.Errorf("jmp: invalid selector term %q, want key=value", pair)
		}
		labels[kv[0]] = kv[1]
	}
	return meta.Filter{Labels: labels}, nil
}
