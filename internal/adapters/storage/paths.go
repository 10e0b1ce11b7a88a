package storage

import (
	"fmt"
	"path"
)

// CampFolder is the root of a camp's attendance tree.
func CampFolder(campID int64) string {
	return fmt.Sprintf("camp_%d/", campID)
}

// CamperGroupFolder holds core activity photos for a camper group.
func CamperGroupFolder(campID, groupID int64) string {
	return fmt.Sprintf("camp_%d/camper_group_%d/", campID, groupID)
}

// ActivityFolder holds photos for an optional activity schedule.
func ActivityFolder(campID, scheduleID int64) string {
	return fmt.Sprintf("camp_%d/camperactivity_%d/", campID, scheduleID)
}

// CampersFolder holds per-camper material.
func CampersFolder(campID int64) string {
	return fmt.Sprintf("camp_%d/campers/", campID)
}

// MarkerKey is the key of the folder marker inside folder.
func MarkerKey(folder string) string {
	return path.Join(folder, FolderMarker)
}

// AvatarKey names a copied camper photo inside folder. Only the base name of
// the source key is kept so re-runs land on the same key.
func AvatarKey(folder string, camperID int64, sourceKey string) string {
	return path.Join(folder, fmt.Sprintf("avatar_%d_%s", camperID, path.Base(sourceKey)))
}
