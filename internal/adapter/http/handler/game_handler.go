package handler

import (
	"fairplay-wallet/internal/adapter/http/dto"
	"fairplay-wallet/internal/adapter/http/middleware"
	"fairplay-wallet/internal/core/domain"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/pkg/apperror"
	"fairplay-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GameHandler serves seed commitments, bets and round verification.
type GameHandler struct {
	gameSvc   ports.GameService
	walletSvc ports.WalletService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(gameSvc ports.GameService, walletSvc ports.WalletService) *GameHandler {
	return &GameHandler{gameSvc: gameSvc, walletSvc: walletSvc}
}

// CommitSeed handles POST /api/v1/games/seed.
func (h *GameHandler) CommitSeed(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	w, err := h.walletSvc.GetOrCreateWallet(c.Request.Context(), ownerID, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	seed, err := h.gameSvc.CommitSeed(c.Request.Context(), w.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.SeedResponse{
		ServerSeedHash: seed.ServerSeedHash,
		Nonce:          seed.Nonce,
	})
}

// PlaceBet handles POST /api/v1/games/:game/bets.
func (h *GameHandler) PlaceBet(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	game, err := domain.ParseGame(c.Param("game"))
	if err != nil {
		response.Error(c, apperror.ErrUnknownGame(c.Param("game")))
		return
	}

	var req dto.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	stakes, err := toStakes(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	w, err := h.walletSvc.GetOrCreateWallet(c.Request.Context(), ownerID, "")
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.gameSvc.PlaceBet(c.Request.Context(), ports.PlaceBetRequest{
		PlayerWalletID: w.ID,
		Game:           game,
		Stakes:         stakes,
		ClientSeed:     req.ClientSeed,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.BetResponse{
		RoundID:    result.RoundID.String(),
		Game:       string(result.Game),
		Outcome:    result.Outcome,
		Bets:       result.Bets,
		TotalStake: result.TotalStake,
		TotalWin:   result.TotalWin,
		NewBalance: result.NewBalance,
		Currency:   result.Currency,
		Fairness: dto.FairnessResponse{
			ServerSeedHash: result.Fairness.ServerSeedHash,
			ServerSeed:     result.Fairness.ServerSeed,
			ClientSeed:     result.Fairness.ClientSeed,
			Nonce:          result.Fairness.Nonce,
		},
	})
}

// GetRound handles GET /api/v1/games/rounds/:id.
func (h *GameHandler) GetRound(c *gin.Context) {
	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid round id"))
		return
	}

	v, err := h.gameSvc.VerifyRound(c.Request.Context(), roundID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.RoundResponse{Round: v.Round, Verified: v.Verified})
}

// toStakes accepts the stake list or the {bet_type, amount} shorthand.
func toStakes(req dto.PlaceBetRequest) ([]domain.Stake, error) {
	raw := req.Stakes
	if len(raw) == 0 && req.BetType != "" {
		raw = []dto.StakeRequest{{Kind: req.BetType, Amount: req.Amount}}
	}
	if len(raw) == 0 {
		return nil, apperror.ErrInvalidStake("at least one stake is required")
	}

	stakes := make([]domain.Stake, 0, len(raw))
	for _, s := range raw {
		kind, err := domain.ParseBetKind(s.Kind)
		if err != nil {
			return nil, apperror.ErrInvalidStake(err.Error())
		}
		if s.Amount <= 0 {
			return nil, apperror.ErrInvalidStake("stake amount must be positive")
		}
		stakes = append(stakes, domain.Stake{Kind: kind, Amount: s.Amount})
	}
	return stakes, nil
}
