package model

// CreateNodeRequest is the body of POST /AssetHierarchy.
type CreateNodeRequest struct {
	ID       string `json:"id" validate:"omitempty,max=64"`
	Name     string `json:"name" validate:"required,max=30,assetname"`
	ParentID string `json:"parentId" validate:"required"`
}

type AddAssetRequest struct {
	Name string `json:"name" validate:"required,max=30,assetname"`
}

type AddChildRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RenameNodeRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=30,assetname"`
}

type MoveNodeRequest struct {
	TargetID  string `json:"targetId"`
	Confirmed bool   `json:"confirmed"`
}

type ValidateMoveRequest struct {
	DraggedID string `json:"draggedId"`
	TargetID  string `json:"targetId"`
}

type ValidateMoveData struct {
	OK     bool         `json:"ok"`
	Reason RejectReason `json:"reason,omitempty"`
}

type SignalRequest struct {
	Name        string    `json:"name" validate:"required,max=30,assetname"`
	ValueType   ValueType `json:"valueType" validate:"required,oneof=string real"`
	Description string    `json:"description" validate:"max=200"`
}

type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
