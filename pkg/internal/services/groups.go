package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edvisory/portal-messaging/pkg/internal/database"
	"github.com/edvisory/portal-messaging/pkg/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func getGroup(tx *gorm.DB, id uint) (models.Group, error) {
	var group models.Group
	if err := tx.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return group, fmt.Errorf("%w: group #%d", ErrNotFound, id)
		}
		return group, err
	}
	return group, nil
}

func isGroupMember(tx *gorm.DB, groupId, userId uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupId, userId).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func listGroupMemberIds(tx *gorm.DB, groupId uint) ([]uint, error) {
	var ids []uint
	if err := tx.Model(&models.GroupMember{}).
		Where("group_id = ?", groupId).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateGroup creates a named group, the creator is always a member.
func CreateGroup(user Identity, name string, memberIds []uint) (models.Group, error) {
	if err := ensureAuthenticated(user); err != nil {
		return models.Group{}, err
	}

	name = strings.TrimSpace(name)
	members := lo.Without(lo.Uniq(memberIds), user.UserID, 0)

	var err error
	if len(name) == 0 {
		err = fmt.Errorf("%w: group name is required", ErrValidation)
	} else if len(members) == 0 {
		err = fmt.Errorf("%w: group needs at least one member besides you", ErrValidation)
	}
	if err != nil {
		logFailure("create_group", user, "groups", err)
		return models.Group{}, err
	}

	group := models.Group{Name: name, CreatedBy: user.UserID}
	err = database.C.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&group).Error; err != nil {
			return err
		}
		group.Members = lo.Map(append([]uint{user.UserID}, members...), func(item uint, _ int) models.GroupMember {
			return models.GroupMember{GroupID: group.ID, UserID: item}
		})
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&group.Members).Error
	})
	if err != nil {
		logFailure("create_group", user, "groups", err)
		return group, err
	}

	return group, nil
}

// AddMembers adds only the users who are not in the group yet.
// It returns ErrNoOp when every requested user is already a member.
func AddMembers(user Identity, groupId uint, memberIds []uint) ([]uint, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	target := GroupRef(groupId).String()

	group, err := getGroup(database.C, groupId)
	if err != nil {
		logFailure("add_group_members", user, target, err)
		return nil, err
	} else if !CanManageThread(user, group.CreatedBy) {
		err = fmt.Errorf("%w: only the group creator can add members", ErrForbidden)
		logFailure("add_group_members", user, target, err)
		return nil, err
	}

	var added []uint
	err = database.C.Transaction(func(tx *gorm.DB) error {
		current, err := listGroupMemberIds(tx, group.ID)
		if err != nil {
			return err
		}
		added, _ = lo.Difference(lo.Without(lo.Uniq(memberIds), 0), current)
		if len(added) == 0 {
			return ErrNoOp
		}
		rows := lo.Map(added, func(item uint, _ int) models.GroupMember {
			return models.GroupMember{GroupID: group.ID, UserID: item}
		})
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
			return err
		}
		return touchThread(tx, GroupRef(group.ID))
	})
	if err != nil {
		logFailure("add_group_members", user, target, err)
		return nil, err
	}

	return added, nil
}

func DeleteGroup(user Identity, groupId uint) error {
	if err := ensureAuthenticated(user); err != nil {
		return err
	}

	target := GroupRef(groupId).String()

	group, err := getGroup(database.C, groupId)
	if err != nil {
		logFailure("delete_group", user, target, err)
		return err
	} else if !CanManageThread(user, group.CreatedBy) {
		err = fmt.Errorf("%w: only the group creator can delete this group", ErrForbidden)
		logFailure("delete_group", user, target, err)
		return err
	}

	err = database.C.Transaction(func(tx *gorm.DB) error {
		if err := purgeMessages(tx, "group_id", group.ID); err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&group).Error
	})
	if err != nil {
		logFailure("delete_group", user, target, err)
	}
	return err
}

func PostGroupMessage(user Identity, groupId uint, content string, attachments []string) (models.Message, error) {
	return AppendMessage(user, GroupRef(groupId), content, attachments)
}

func authorizeGroupRead(tx *gorm.DB, user Identity, groupId uint) (models.Group, error) {
	group, err := getGroup(tx, groupId)
	if err != nil {
		return group, err
	}
	if IsMessagingAdmin(user.Role) {
		return group, nil
	}
	if member, err := isGroupMember(tx, group.ID, user.UserID); err != nil {
		return group, err
	} else if !member {
		return group, fmt.Errorf("%w: you are not a member of this group", ErrForbidden)
	}
	return group, nil
}

func ListGroupMessages(user Identity, groupId uint) ([]models.Message, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	target := GroupRef(groupId).String()

	if _, err := authorizeGroupRead(database.C, user, groupId); err != nil {
		logFailure("list_group_messages", user, target, err)
		return nil, err
	}

	var messages []models.Message
	if err := database.C.
		Preload("ReadReceipts").
		Where("group_id = ?", groupId).
		Order("created_at ASC, id ASC").
		Find(&messages).Error; err != nil {
		logFailure("list_group_messages", user, target, err)
		return nil, err
	}

	return messages, nil
}

func ListGroups(user Identity) ([]models.Group, error) {
	if err := ensureAuthenticated(user); err != nil {
		return nil, err
	}

	tx := database.C.Preload("Members")
	if !IsMessagingAdmin(user.Role) {
		tx = tx.Where("id IN (?)", database.C.
			Model(&models.GroupMember{}).
			Select("group_id").
			Where("user_id = ?", user.UserID),
		)
	}

	var groups []models.Group
	if err := tx.Order("updated_at DESC, id DESC").Find(&groups).Error; err != nil {
		logFailure("list_groups", user, "groups", err)
		return nil, err
	}

	return groups, nil
}
