/*
 *
 * shadowfold - a self-hiding layered resource resolver
 * Copyright (C) 2026 The shadowfold Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package resolver

import (
	"fmt"
	"io"
	"strings"

	"github.com/foldlib/shadowfold/lib/fsext"
	"github.com/foldlib/shadowfold/listing"
)

// archiveSep separates an archive path from an entry name in the string form
// of an Address. The own-bundle check compares string forms by length and
// prefix, so this separator is part of the resolution contract and must not
// change.
const archiveSep = "!/"

// Address locates a resolved resource: a slash-delimited name inside either a
// directory or an archive. The zero Address means "not found".
type Address struct {
	// Location is the canonical path of the directory or archive serving
	// the resource.
	Location string
	// Name is the resource name relative to Location, always with forward
	// slashes.
	Name string
	// Archive is set when Location is an archive and Name is one of its
	// entries.
	Archive bool
}

// IsZero reports whether the address locates nothing.
func (a Address) IsZero() bool {
	return a.Location == "" && a.Name == ""
}

// String returns the canonical string form: "location/name" for directory
// hits and "location!/name" for archive entries.
func (a Address) String() string {
	if a.Archive {
		return a.Location + archiveSep + a.Name
	}
	return a.Location + "/" + a.Name
}

// Open returns a reader for the addressed bytes.
func (a Address) Open(fs fsext.Fs) (io.ReadCloser, error) {
	if a.IsZero() {
		return nil, fmt.Errorf("cannot open the zero address")
	}
	if a.Archive {
		return listing.OpenEntry(fs, a.Location, a.Name)
	}
	return fs.Open(fsext.JoinResourcePath(a.Location, a.Name))
}

// ParseAddress parses the string form produced by Address.String. A string
// containing the archive separator is an archive entry address; anything else
// is taken as "dir/name" split at the last element boundary given the name.
// It is mainly useful for delegates that exchange addresses as strings.
func ParseAddress(s, name string) (Address, error) {
	if i := strings.Index(s, archiveSep); i >= 0 {
		return Address{Location: s[:i], Name: s[i+len(archiveSep):], Archive: true}, nil
	}
	suffix := "/" + name
	if !strings.HasSuffix(s, suffix) {
		return Address{}, fmt.Errorf("address %q does not end in resource name %q", s, name)
	}
	return Address{Location: s[:len(s)-len(suffix)], Name: name}, nil
}
