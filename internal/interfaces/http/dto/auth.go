package dto

// AuthRequest 访问口令校验请求
type AuthRequest struct {
	Password string `json:"password"`
}

// AuthResponse 访问口令校验结果
type AuthResponse struct {
	Success   bool  `json:"success"`
	ExpiresIn int64 `json:"expires_in"`
}
