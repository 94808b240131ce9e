// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"strings"

	"github.com/mhoffm/markvault/pkg/types"
)

// Target is a resolved output location: a normalized folder path plus the
// asset-subfolder convention in effect for this conversion.
type Target struct {
	// Folder is the vault-relative output folder, "" for the vault root,
	// otherwise ending in exactly one "/".
	Folder string

	// AssetSubfolder places images under Folder + "assets/".
	AssetSubfolder bool
}

// AssetsFolder returns the folder images are written to.
func (t Target) AssetsFolder() string {
	if t.AssetSubfolder {
		return t.Folder + "assets/"
	}
	return t.Folder
}

// ResolveTarget computes the output location for one conversion. With the
// dedicated-folder policy the folder name is the source file's stem with
// embedded periods normalized to hyphens; an already-existing folder suspends
// resolution on the prompter ("integrate or cancel"). Without the policy the
// source's containing folder is used as-is.
//
// The second return value reports whether resolution completed; false means
// the user cancelled, which is not an error.
func ResolveTarget(v *Vault, p Prompter, settings types.Settings, file File) (Target, bool, error) {
	target := Target{AssetSubfolder: settings.CreateAssetSubfolder}

	if !settings.CreateFolder {
		target.Folder = file.Folder()
		return target, true, nil
	}

	folderName := strings.ReplaceAll(file.Stem(), ".", "-")
	target.Folder = file.Folder() + folderName + "/"

	if v.FolderExists(target.Folder) {
		ok := p.Confirm(
			"Folder already exists!",
			"The folder \""+target.Folder+"\" already exists. Do you want to integrate the files into this folder?",
		)
		if !ok {
			return Target{}, false, nil
		}
		return target, true, nil
	}

	if err := v.CreateFolder(target.Folder); err != nil {
		return Target{}, false, err
	}
	return target, true, nil
}

// CheckForExistingFiles lists vault files under the target folder and, when
// any exist, suspends on the prompter. It reports whether the caller may
// proceed; a decline means the conversion aborts before any write.
func CheckForExistingFiles(v *Vault, p Prompter, target Target) (bool, error) {
	existing, err := v.ListPrefix(target.Folder)
	if err != nil {
		return false, err
	}
	if len(existing) == 0 {
		return true, nil
	}
	return p.Confirm(
		"Existing files found",
		"Some files already exist in the target folder. Do you want to overwrite them / integrate the new files into this folder?",
	), nil
}
