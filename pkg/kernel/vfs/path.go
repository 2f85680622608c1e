// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"strings"

	"github.com/sushionthefork/fav-os/pkg/errors"
)

// Path is a normalized pathname: a mount label, the directory components
// leading to the final name, and the final name itself. The empty Path
// (Dir == nil, Name == "") denotes the root of Mount.
type Path struct {
	Mount string
	Dir   []string
	Name  string
}

// String rebuilds the absolute wire form "LABEL:\comp1\comp2\name".
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Mount)
	b.WriteByte(':')
	for _, c := range p.Dir {
		b.WriteByte('\\')
		b.WriteString(c)
	}
	if p.Name != "" {
		b.WriteByte('\\')
		b.WriteString(p.Name)
	}
	return b.String()
}

// Components returns the full ordered component list (Dir then Name), the
// form FAT mount traversal wants.
func (p Path) Components() []string {
	if p.Name == "" {
		return p.Dir
	}
	out := make([]string, len(p.Dir)+1)
	copy(out, p.Dir)
	out[len(p.Dir)] = p.Name
	return out
}

// IsRoot reports whether p names the root of its mount.
func (p Path) IsRoot() bool { return p.Name == "" && len(p.Dir) == 0 }

// Parent returns the path one level up.
func (p Path) Parent() Path {
	if len(p.Dir) == 0 {
		return Path{Mount: p.Mount}
	}
	return Path{Mount: p.Mount, Dir: p.Dir[:len(p.Dir)-1], Name: p.Dir[len(p.Dir)-1]}
}

// Normalize parses raw (which may be relative to cwd) into a Path.
//
// Rules: both '/' and '\' separate components; empty components and "."
// are dropped; ".." pops the previous component, or is silently discarded
// at the root. A path with no "LABEL:" prefix is resolved against cwd's
// mount and directory. Malformed input (e.g. an empty mount label before
// ':') is reported as FileNotFound: the original source this kernel is
// drawn from conflates "not parseable" with "not found", and this
// implementation preserves that unification rather than inventing a
// distinct error the original never had.
func Normalize(raw string, cwd Path) (Path, *errors.Error) {
	raw = strings.ReplaceAll(raw, "/", "\\")

	mount := cwd.Mount
	rest := raw
	base := cwd.Components()

	if idx := strings.IndexByte(raw, ':'); idx >= 0 && !strings.Contains(raw[:idx], "\\") {
		mount = raw[:idx]
		rest = raw[idx+1:]
		base = nil
		if mount == "" {
			return Path{}, errors.New(errors.FileNotFound, "vfs: empty mount label")
		}
	}

	stack := append([]string{}, base...)
	for _, comp := range strings.Split(rest, "\\") {
		switch comp {
		case "", ".":
			// dropped
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, comp)
		}
	}

	if len(stack) == 0 {
		return Path{Mount: mount}, nil
	}
	return Path{
		Mount: mount,
		Dir:   stack[:len(stack)-1],
		Name:  stack[len(stack)-1],
	}, nil
}
