package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/teleportdao/teleswap-engine/decimals"
	"github.com/teleportdao/teleswap-engine/fees"
	"github.com/teleportdao/teleswap-engine/filler"
	"github.com/teleportdao/teleswap-engine/types"
	"github.com/teleportdao/teleswap-engine/vault"
)

// startAPI serves the status endpoints, the job submission endpoints and
// the operator-token-guarded admin surface.
func startAPI(a *AppState, eng *Engine, queue chan *Job, operatorToken string) {
	router := newRouter(eng, queue, operatorToken)

	if len(a.Config.Api.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(a.Config.Api.TrustedProxies); err != nil {
			a.Logger.Error("unable to set trusted proxies", "err", err)
		}
	}

	port := a.Config.Api.Port
	if port == 0 {
		port = 8000
	}
	if err := router.Run(fmt.Sprintf(":%d", port)); err != nil {
		a.Logger.Error("api server stopped", "err", err)
	}
}

func newRouter(eng *Engine, queue chan *Job, operatorToken string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/request/*key", getRequest(eng))
	router.GET("/requests", listRequests(eng))
	router.POST("/deposit", submitDeposit(queue))
	router.POST("/message", submitMessage(queue))
	router.POST("/fill", submitFill(eng))

	admin := router.Group("/admin", requireOperator(operatorToken))
	admin.POST("/pause", func(c *gin.Context) {
		eng.Orchestrator.Pause()
		c.JSON(http.StatusOK, gin.H{"paused": true})
	})
	admin.POST("/resume", func(c *gin.Context) {
		eng.Orchestrator.Resume()
		c.JSON(http.StatusOK, gin.H{"paused": false})
	})
	admin.POST("/tier-boundaries", setTierBoundaries(eng))
	admin.POST("/tier-rate", setTierRate(eng))
	admin.POST("/third-party", setThirdParty(eng))
	admin.POST("/decimals", setDecimals(eng))
	admin.POST("/trusted-transport", setTrustedTransport(eng))
	admin.POST("/retry", retryWithheld(eng))
	admin.POST("/refund", refundWithheld(eng))

	return router
}

func requireOperator(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid operator token"})
			return
		}
		c.Next()
	}
}

func getRequest(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if req, ok := eng.Orchestrator.State().Load(key); ok {
			c.IndentedJSON(http.StatusOK, req)
			return
		}
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "request not found"})
	}
}

func listRequests(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := map[string]*types.SettlementRequest{}
		eng.Orchestrator.State().Range(func(key string, req *types.SettlementRequest) bool {
			out[key] = req
			return true
		})
		c.IndentedJSON(http.StatusOK, out)
	}
}

type depositBody struct {
	Caller string `json:"caller" binding:"required"`
	Proof  string `json:"proof" binding:"required"`
}

func submitDeposit(queue chan *Job) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body depositBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Caller) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "caller must be a hex address"})
			return
		}
		proof, err := hexutil.Decode(body.Proof)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "proof must be 0x-prefixed hex"})
			return
		}
		queue <- &Job{
			Kind:   jobKindDeposit,
			Caller: common.HexToAddress(body.Caller),
			Proof:  proof,
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "deposit queued"})
	}
}

type messageBody struct {
	Caller  string `json:"caller" binding:"required"`
	Asset   string `json:"asset" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	Budget  uint64 `json:"budget"`
	Message string `json:"message" binding:"required"`
}

func submitMessage(queue chan *Job) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body messageBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Caller) || !common.IsHexAddress(body.Asset) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "caller and asset must be hex addresses"})
			return
		}
		amount, ok := math.NewIntFromString(body.Amount)
		if !ok || amount.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"message": "amount must be a non-negative integer"})
			return
		}
		raw, err := hexutil.Decode(body.Message)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "message must be 0x-prefixed hex"})
			return
		}
		queue <- &Job{
			Kind:    jobKindMessage,
			Caller:  common.HexToAddress(body.Caller),
			Asset:   common.HexToAddress(body.Asset),
			Amount:  amount,
			Budget:  body.Budget,
			Message: raw,
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "message queued"})
	}
}

type fillBody struct {
	Filler          string `json:"filler" binding:"required"`
	RequestID       string `json:"request_id" binding:"required"`
	Recipient       string `json:"recipient" binding:"required"`
	Asset           string `json:"asset" binding:"required"`
	RequestedAmount string `json:"requested_amount" binding:"required"`
	DestDomain      uint32 `json:"dest_domain"`
	BridgeFeeRate   uint64 `json:"bridge_fee_rate"`
	FillAmount      string `json:"fill_amount" binding:"required"`
}

// submitFill advances a filler's funds against a pending settlement. The
// fill executes synchronously so the filler learns immediately whether its
// terms won the record.
func submitFill(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body fillBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Filler) || !common.IsHexAddress(body.Asset) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "filler and asset must be hex addresses"})
			return
		}
		idBz, err := hexutil.Decode(body.RequestID)
		if err != nil || len(idBz) != 32 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "request_id must be 32 bytes of 0x-prefixed hex"})
			return
		}
		recipientBz, err := hexutil.Decode(body.Recipient)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "recipient must be 0x-prefixed hex"})
			return
		}
		recipient, err := types.RecipientFromBytes(recipientBz)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		requested, ok := math.NewIntFromString(body.RequestedAmount)
		if !ok || requested.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"message": "requested_amount must be a non-negative integer"})
			return
		}
		fillAmount, ok := math.NewIntFromString(body.FillAmount)
		if !ok || fillAmount.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"message": "fill_amount must be a non-negative integer"})
			return
		}

		terms := filler.Terms{
			Recipient:       recipient,
			Asset:           common.HexToAddress(body.Asset),
			RequestedAmount: requested,
			DestDomain:      types.Domain(body.DestDomain),
			BridgeFeeRate:   body.BridgeFeeRate,
		}
		copy(terms.RequestID[:], idBz)

		if err := eng.Market.Fill(c.Request.Context(), common.HexToAddress(body.Filler), terms, fillAmount); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "fill recorded"})
	}
}

type tierBoundariesBody struct {
	Boundaries []string `json:"boundaries" binding:"required"`
}

func setTierBoundaries(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body tierBoundariesBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		boundaries := make([]math.Int, len(body.Boundaries))
		for i, raw := range body.Boundaries {
			b, ok := math.NewIntFromString(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid boundary %q", raw)})
				return
			}
			boundaries[i] = b
		}
		if err := eng.Fees.SetTierBoundaries(boundaries); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "boundaries updated"})
	}
}

type tierRateBody struct {
	Domain       uint32 `json:"domain"`
	Asset        string `json:"asset" binding:"required"`
	ThirdPartyID uint32 `json:"third_party_id"`
	Tier         int    `json:"tier"`
	Rate         uint64 `json:"rate"`
}

func setTierRate(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body tierRateBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Asset) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "asset must be a hex address"})
			return
		}
		key := fees.TierKey{
			Domain:       types.Domain(body.Domain),
			Asset:        common.HexToAddress(body.Asset),
			ThirdPartyID: body.ThirdPartyID,
			Tier:         body.Tier,
		}
		if err := eng.Fees.SetTierRate(key, body.Rate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "tier rate updated"})
	}
}

type thirdPartyBody struct {
	ID          uint32 `json:"id"`
	Rate        uint64 `json:"rate"`
	Beneficiary string `json:"beneficiary" binding:"required"`
}

func setThirdParty(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body thirdPartyBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Beneficiary) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "beneficiary must be a hex address"})
			return
		}
		if err := eng.Fees.SetThirdPartyRate(body.ID, body.Rate); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		eng.Orchestrator.SetThirdPartyBeneficiary(body.ID, common.HexToAddress(body.Beneficiary))
		c.JSON(http.StatusOK, gin.H{"message": "third party updated"})
	}
}

type decimalsBody struct {
	Asset  string `json:"asset" binding:"required"`
	Pivot  uint8  `json:"pivot"`
	Remote uint8  `json:"remote"`
}

func setDecimals(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body decimalsBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Asset) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "asset must be a hex address"})
			return
		}
		eng.Normalizer.SetAssetDecimals(common.HexToAddress(body.Asset), decimals.AssetDecimals{
			Pivot:  body.Pivot,
			Remote: body.Remote,
		})
		c.JSON(http.StatusOK, gin.H{"message": "decimals updated"})
	}
}

type trustedTransportBody struct {
	Address string `json:"address" binding:"required"`
}

func setTrustedTransport(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body trustedTransportBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if !common.IsHexAddress(body.Address) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "address must be a hex address"})
			return
		}
		eng.Messenger.SetTrustedTransport(common.HexToAddress(body.Address))
		c.JSON(http.StatusOK, gin.H{"message": "trusted transport updated"})
	}
}

type recoveryBody struct {
	Beneficiary string   `json:"beneficiary" binding:"required"`
	Domain      uint32   `json:"domain"`
	RequestKey  string   `json:"request_key" binding:"required"`
	Asset       string   `json:"asset" binding:"required"`
	Path        []string `json:"path"`
}

func (b *recoveryBody) vaultKey() (vault.Key, error) {
	bz, err := hexutil.Decode(b.Beneficiary)
	if err != nil {
		return vault.Key{}, fmt.Errorf("beneficiary must be 0x-prefixed hex")
	}
	beneficiary, err := types.RecipientFromBytes(bz)
	if err != nil {
		return vault.Key{}, err
	}
	if !common.IsHexAddress(b.Asset) {
		return vault.Key{}, fmt.Errorf("asset must be a hex address")
	}
	return vault.Key{
		Beneficiary: beneficiary,
		Domain:      types.Domain(b.Domain),
		RequestKey:  b.RequestKey,
		Asset:       common.HexToAddress(b.Asset),
	}, nil
}

func retryWithheld(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body recoveryBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		key, err := body.vaultKey()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		path := make([]common.Address, 0, len(body.Path))
		for _, hop := range body.Path {
			if !common.IsHexAddress(hop) {
				c.JSON(http.StatusBadRequest, gin.H{"message": "path entries must be hex addresses"})
				return
			}
			path = append(path, common.HexToAddress(hop))
		}
		if err := eng.Orchestrator.RetryWithheld(context.Background(), key, path); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "retry executed"})
	}
}

func refundWithheld(eng *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body recoveryBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		key, err := body.vaultKey()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		if err := eng.Orchestrator.RefundWithheld(context.Background(), key); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "refund executed"})
	}
}
