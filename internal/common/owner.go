// Copyright 2025 Cabinet Authors
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

package common

import "path"

// Owner identifies the space an item subtree and its storage quota belong
// to: either a personal user space or a teamspace. When TeamspaceID is set
// the owner is the teamspace and UserID is ignored for quota and layout.
type Owner struct {
	UserID      string
	TeamspaceID string
}

// PersonalOwner returns the owner for a user's personal space.
func PersonalOwner(userID string) Owner { return Owner{UserID: userID} }

// TeamspaceOwner returns the owner for a teamspace.
func TeamspaceOwner(teamspaceID string) Owner { return Owner{TeamspaceID: teamspaceID} }

// IsTeamspace reports whether the owner is a teamspace.
func (o Owner) IsTeamspace() bool { return o.TeamspaceID != "" }

// Key is the stable counter key for the owner's storage usage row.
func (o Owner) Key() string {
	if o.IsTeamspace() {
		return "team:" + o.TeamspaceID
	}
	return "user:" + o.UserID
}

// SpaceID is the identifier the hierarchy is scoped by: the teamspace id
// when set, otherwise the personal user id.
func (o Owner) SpaceID() string {
	if o.IsTeamspace() {
		return o.TeamspaceID
	}
	return o.UserID
}

// StorageDir is the owner's sandboxed root, relative to the data root.
func (o Owner) StorageDir() string {
	if o.IsTeamspace() {
		return path.Join("teamspaces", o.TeamspaceID)
	}
	return path.Join("users", o.UserID)
}

// Valid reports whether exactly one identity is usable.
func (o Owner) Valid() bool {
	return o.UserID != "" || o.TeamspaceID != ""
}
