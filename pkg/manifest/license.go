package manifest

import "fmt"

// License names the terms a code unit is distributed under.
type License struct {
	SPDX string
	Name string
	URL  string
}

// Well-known licenses.
var (
	MIT         = License{SPDX: "MIT", Name: "MIT License", URL: "https://opensource.org/licenses/MIT"}
	Apache2     = License{SPDX: "Apache-2.0", Name: "Apache License 2.0", URL: "https://opensource.org/licenses/Apache-2.0"}
	GPL3Only    = License{SPDX: "GPL-3.0-only", Name: "GNU General Public License v3.0 only", URL: "https://www.gnu.org/licenses/gpl-3.0.en.html"}
	BSD3Clause  = License{SPDX: "BSD-3-Clause", Name: "BSD 3-Clause License", URL: "https://opensource.org/licenses/BSD-3-Clause"}
	Unlicense   = License{SPDX: "Unlicense", Name: "The Unlicense", URL: "https://unlicense.org/"}
	CC0         = License{SPDX: "CC0-1.0", Name: "Creative Commons Zero v1.0 Universal", URL: "https://creativecommons.org/publicdomain/zero/1.0/"}
	Proprietary = License{SPDX: "Proprietary", Name: "Proprietary"}
	// NoLicense states explicitly that no license is granted.
	NoLicense = License{SPDX: "NoLicense", Name: "No License (Not Open Source)"}
)

// Unspecified is what license resolution yields when no manifest in a chain
// names a license. It means all rights reserved and cannot be set on a
// manifest.
var Unspecified = License{SPDX: "NOASSERTION", Name: "All Rights Reserved (unspecified)"}

var knownLicenses = []License{MIT, Apache2, GPL3Only, BSD3Clause, Unlicense, CC0, Proprietary, NoLicense}

// Licenses returns the built-in license table.
func Licenses() []License {
	return append([]License(nil), knownLicenses...)
}

// LookupLicense returns the built-in license with the given SPDX identifier.
func LookupLicense(spdx string) (License, bool) {
	for _, l := range knownLicenses {
		if l.SPDX == spdx {
			return l, true
		}
	}
	return License{}, false
}

// IsUnspecified reports whether l is the Unspecified floor.
func (l License) IsUnspecified() bool {
	return l.SPDX == Unspecified.SPDX
}

// Equal compares licenses by SPDX identifier.
func (l License) Equal(o License) bool {
	return l.SPDX == o.SPDX
}

// String renders "SPDX (Name)".
func (l License) String() string {
	if l.Name == "" || l.Name == l.SPDX {
		return l.SPDX
	}
	return l.SPDX + " (" + l.Name + ")"
}

func (l License) validate() error {
	if l.SPDX == "" {
		return fmt.Errorf("license has no SPDX identifier")
	}
	if l.IsUnspecified() {
		return fmt.Errorf("%s is the resolution floor and cannot be set", l.SPDX)
	}
	return nil
}

// Copyright records when and by whom a code unit was created.
type Copyright struct {
	Date   Date
	Author Author
}

// String renders "(c) YEAR Name".
func (c Copyright) String() string {
	if c.Date.IsZero() {
		return "(c) " + c.Author.Name
	}
	return fmt.Sprintf("(c) %d %s", c.Date.Year, c.Author.Name)
}
