package crm

import (
	"github.com/brightcrm/backend/internal/db"
	"github.com/brightcrm/backend/internal/sync"
)

// RegisterAll binds the bundled CRM handlers into the registry. New entity
// types only need a handler and a Register call here.
func RegisterAll(registry *sync.Registry, repo *db.Repository) error {
	bindings := []struct {
		entity  sync.EntityType
		op      sync.OperationType
		handler sync.Handler
	}{
		{sync.EntityLead, sync.OpCreate, NewLeadCreateHandler(repo)},
		{sync.EntityLead, sync.OpUpdate, NewLeadUpdateHandler(repo)},
		{sync.EntityTask, sync.OpCreate, NewTaskCreateHandler(repo)},
		{sync.EntityTask, sync.OpComplete, NewTaskCompleteHandler(repo)},
		{sync.EntityFollowUp, sync.OpAddRemark, NewFollowUpRemarkHandler(repo)},
	}

	for _, b := range bindings {
		if err := registry.Register(b.entity, b.op, b.handler); err != nil {
			return err
		}
	}
	return nil
}
