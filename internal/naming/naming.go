// Copyright 2025 Emiliano Spinella (eminwux)
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
//
// SPDX-License-Identifier: Apache-2.0

// Package naming generates identifiers and human-friendly labels for
// workflow runs.
package naming

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	mrand "math/rand"
)

//nolint:gochecknoglobals // word lists
var left = []string{
	"amber", "aromatic", "aged", "balanced", "bold", "bright", "brisk", "buttery", "complex", "crisp",
	"dry", "dusky", "earthy", "elegant", "fizzy", "floral", "fresh", "fruity", "gentle", "golden",
	"grassy", "honeyed", "jammy", "late", "lean", "lively", "lush", "mellow", "mineral", "nutty",
	"oaked", "opulent", "peppery", "plush", "quiet", "radiant", "rich", "ripe", "robust", "rosy",
	"rustic", "silky", "smoky", "smooth", "spicy", "sparkling", "still", "supple", "sweet", "tart",
	"tawny", "toasty", "vintage", "velvety", "vivid", "warm", "young", "zesty",
}

//nolint:gochecknoglobals // word lists
var right = []string{
	"albarino", "barbera", "barolo", "cabernet", "carignan", "chablis", "chardonnay", "chenin", "cinsault", "claret",
	"dolcetto", "fiano", "gamay", "garnacha", "gewurz", "grenache", "gruner", "lambrusco", "malbec", "marsanne",
	"merlot", "mourvedre", "muscat", "nebbiolo", "picpoul", "pinotage", "primitivo", "prosecco", "riesling", "rioja",
	"roussanne", "sangiovese", "sauternes", "semillon", "shiraz", "syrah", "tannat", "tempranillo", "torrontes", "verdejo",
	"vermentino", "viognier", "zinfandel",
}

// RandomName returns an adjective_grape label such as "crisp_merlot".
func RandomName() string {
	r := mrand.New(mrand.NewSource(randSeed())) //nolint:gosec // labels only
	return left[r.Intn(len(left))] + "_" + right[r.Intn(len(right))]
}

func randSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return int64(binary.LittleEndian.Uint64(b[:]))
	}
	return mrand.Int63() //nolint:gosec // fallback seed
}

// RandomID returns 8 random hex characters.
func RandomID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
