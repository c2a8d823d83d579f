package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostingService 过账引擎。
// 一张源单据 → 一组平衡分录；同张单据最多过账一次（draft→posted CAS 保证）。
type PostingService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

func NewPostingService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *PostingService {
	return &PostingService{db: db, repos: repos, logger: logger}
}

// Post 过账一张源单据，返回生成的批次。
// 校验类错误与 ErrAlreadyPosted 直接返回调用方，不重试；
// 存储层瞬时故障由调用方在事务边界重试（CAS 使重试天然幂等）。
func (s *PostingService) Post(ctx context.Context, sourceType, sourceID, userID string) (*entity.PostingBatch, error) {
	rule, ok := postingRules[sourceType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source type %q", ErrNotFound, sourceType)
	}

	src, err := s.repos.Source.FindSource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, err
	}

	switch src.Status() {
	case entity.PostingStatusDraft:
		// 可过账
	case entity.PostingStatusPosted:
		return nil, ErrAlreadyPosted
	default:
		return nil, fmt.Errorf("source %s/%s in status %q cannot be posted", sourceType, sourceID, src.Status())
	}

	dims := src.DimensionRefs()
	if err := s.checkRequiredDimensions(ctx, rule, dims); err != nil {
		return nil, err
	}
	if err := s.checkDimensionValues(ctx, dims); err != nil {
		return nil, err
	}

	specs, err := rule.BuildLines(src)
	if err != nil {
		return nil, err
	}
	if err := s.checkAccounts(ctx, specs); err != nil {
		return nil, err
	}

	// 平衡校验。分录按构造即平衡，此处失败意味着构造算法有bug，
	// 属于致命编程错误，不允许吞掉。
	if err := checkBalanced(specs); err != nil {
		s.logger.Error("Constructed batch does not balance",
			zap.String("source_type", sourceType),
			zap.String("source_id", sourceID),
			zap.Error(err),
		)
		return nil, err
	}

	now := time.Now()
	batch := &entity.PostingBatch{
		ID:         uuid.New().String()[:32],
		SourceType: sourceType,
		SourceID:   sourceID,
		Kind:       entity.BatchKindPosting,
		CreatedBy:  userID,
		CreatedAt:  now,
	}
	for _, spec := range specs {
		batch.Lines = append(batch.Lines, entity.LedgerLine{
			ID:         uuid.New().String()[:32],
			BatchID:    batch.ID,
			AccountID:  spec.AccountID,
			Debit:      spec.Debit,
			Credit:     spec.Credit,
			SourceType: sourceType,
			SourceID:   sourceID,
			EntryDate:  src.EntryDate(),
			CreatedBy:  userID,
			CreatedAt:  now,
		})
	}

	// 状态翻转与批次写入在同一事务内：任一失败整体回滚，源单据状态不变
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flipped, err := s.repos.Source.MarkPosted(tx, sourceType, sourceID, userID, now)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyPosted
		}
		if err := s.repos.Posting.CreateBatch(tx, batch); err != nil {
			return err
		}
		return s.repos.Posting.CreateAssignments(tx, buildAssignments(batch.Lines, dims, now))
	})
	if err != nil {
		return nil, err
	}

	return s.repos.Posting.FindBatchByID(ctx, batch.ID)
}

// Reverse 冲销一个过账批次：生成借贷互换的新批次，原批次与源单据状态不动。
func (s *PostingService) Reverse(ctx context.Context, batchID, userID string) (*entity.PostingBatch, error) {
	orig, err := s.repos.Posting.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if orig.Kind != entity.BatchKindPosting {
		return nil, fmt.Errorf("%w: only posting batches can be reversed", ErrNotFound)
	}

	existing, _, err := s.repos.Posting.ListBatches(ctx, 1, 1, map[string]string{
		"source_type": orig.SourceType,
		"source_id":   orig.SourceID,
		"kind":        entity.BatchKindReversal,
	})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrAlreadyReversed
	}

	now := time.Now()
	rev := &entity.PostingBatch{
		ID:              uuid.New().String()[:32],
		SourceType:      orig.SourceType,
		SourceID:        orig.SourceID,
		Kind:            entity.BatchKindReversal,
		ReversesBatchID: &orig.ID,
		CreatedBy:       userID,
		CreatedAt:       now,
	}

	var dims []entity.DimensionRef
	seen := map[string]bool{}
	for _, line := range orig.Lines {
		rev.Lines = append(rev.Lines, entity.LedgerLine{
			ID:         uuid.New().String()[:32],
			BatchID:    rev.ID,
			AccountID:  line.AccountID,
			Debit:      line.Credit, // 借贷互换
			Credit:     line.Debit,
			SourceType: line.SourceType,
			SourceID:   line.SourceID,
			EntryDate:  now,
			CreatedBy:  userID,
			CreatedAt:  now,
		})
		for _, a := range line.Assignments {
			if !seen[a.TypeCode] {
				seen[a.TypeCode] = true
				dims = append(dims, entity.DimensionRef{TypeCode: a.TypeCode, ValueID: a.ValueID})
			}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.Posting.CreateBatch(tx, rev); err != nil {
			return err
		}
		return s.repos.Posting.CreateAssignments(tx, buildAssignments(rev.Lines, dims, now))
	})
	if err != nil {
		return nil, err
	}

	return s.repos.Posting.FindBatchByID(ctx, rev.ID)
}

// GetBatch 查询批次详情
func (s *PostingService) GetBatch(ctx context.Context, id string) (*entity.PostingBatch, error) {
	return s.repos.Posting.FindBatchByID(ctx, id)
}

// ListBatches 查询批次列表
func (s *PostingService) ListBatches(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PostingBatch, int64, error) {
	return s.repos.Posting.ListBatches(ctx, page, pageSize, filters)
}

// checkRequiredDimensions 校验必填维度：单据类型声明的维度中，
// 目录里标记 is_required 的必须在源单据上有值。
func (s *PostingService) checkRequiredDimensions(ctx context.Context, rule PostingRule, dims []entity.DimensionRef) error {
	present := make(map[string]bool, len(dims))
	for _, d := range dims {
		present[d.TypeCode] = true
	}

	for _, code := range rule.DeclaredDimensions {
		dt, err := s.repos.Dimension.FindTypeByCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue // 目录未配置该维度类型，不参与校验
			}
			return err
		}
		if dt.IsRequired && !present[code] {
			return fmt.Errorf("%w: %s", ErrMissingRequiredDimension, code)
		}
	}
	return nil
}

// checkDimensionValues 校验维度值存在
func (s *PostingService) checkDimensionValues(ctx context.Context, dims []entity.DimensionRef) error {
	if len(dims) == 0 {
		return nil
	}
	ids := make([]string, 0, len(dims))
	for _, d := range dims {
		ids = append(ids, d.ValueID)
	}
	values, err := s.repos.Dimension.FindValuesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, d := range dims {
		if _, ok := values[d.ValueID]; !ok {
			return fmt.Errorf("%w: dimension value %s (%s)", ErrNotFound, d.ValueID, d.TypeCode)
		}
	}
	return nil
}

// checkAccounts 校验目标科目存在且为可过账的 detail 科目
func (s *PostingService) checkAccounts(ctx context.Context, specs []LineSpec) error {
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.AccountID)
	}
	accounts, err := s.repos.Account.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		account, ok := accounts[spec.AccountID]
		if !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, spec.AccountID)
		}
		if !account.Postable() {
			return fmt.Errorf("%w: %s (%s)", ErrAccountNotPostable, account.Code, account.Category)
		}
	}
	return nil
}

// checkBalanced 批次平衡校验：借方合计与贷方合计严格相等，无容差
func checkBalanced(specs []LineSpec) error {
	var debit, credit decimal.Decimal
	for _, spec := range specs {
		debit = debit.Add(spec.Debit)
		credit = credit.Add(spec.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit=%s credit=%s", ErrImbalancedEntry, debit, credit)
	}
	return nil
}

// buildAssignments 把源单据的维度引用复制到批次内每一行
func buildAssignments(lines []entity.LedgerLine, dims []entity.DimensionRef, now time.Time) []entity.DimensionAssignment {
	assignments := make([]entity.DimensionAssignment, 0, len(lines)*len(dims))
	for _, line := range lines {
		for _, d := range dims {
			assignments = append(assignments, entity.DimensionAssignment{
				ID:        uuid.New().String()[:32],
				LineID:    line.ID,
				TypeCode:  d.TypeCode,
				ValueID:   d.ValueID,
				CreatedAt: now,
			})
		}
	}
	return assignments
}
