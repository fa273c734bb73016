package dto

// LoginRequest carries operator credentials.
type LoginRequest struct {
	OperatorID string `json:"operatorID" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	Token string `json:"token"`
}
