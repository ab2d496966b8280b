package quote

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/blueprint"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/exporter"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/pricing"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/snapshot"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/store"
)

// Service 报价编排层
//
// 持有唯一的解析器缓存：上传、映射保存、覆盖保存都会使它失效，
// 报价请求命中缓存时不再重读工作簿或重新合并蓝图。
type Service struct {
	store *store.Store
	ai    blueprint.Generator // nil 表示未配置 AI 凭据

	snapshotOpts snapshot.Options

	mu    sync.Mutex // 串行化 写设置/重生成蓝图 的读改写
	cache *pricing.Cache
}

func New(st *store.Store, ai blueprint.Generator, opts snapshot.Options) *Service {
	return &Service{
		store:        st,
		ai:           ai,
		snapshotOpts: opts,
		cache:        pricing.NewCache(),
	}
}

// Upload 入库一次工作簿上传：提取快照 → 生成蓝图 → 持久化
//
// AI 失败被吸收为回退、快照提取失败被吸收为无蓝图记录，两者都记在
// BlueprintError 字段上；只有持久化本身失败才算上传失败。
func (s *Service) Upload(ctx context.Context, filename, mimeType string, data []byte) (*model.WorkbookInfo, error) {
	settings, err := s.store.LoadSettings()
	if err != nil {
		return nil, err
	}
	mapping := effectiveMapping(settings)

	snap, err := snapshot.Extract(data, filename, s.snapshotOpts)
	if err != nil {
		// 读不出来的上传也入库：错误文本记在记录上，bootstrap 降级为
		// setupRequired 并透出该文本，而不是丢失这次上传
		log.Printf("snapshot extraction failed for %s: %v", filename, err)
		return s.saveUpload(&store.WorkbookRecord{
			Filename:       filename,
			MimeType:       mimeType,
			Data:           data,
			BlueprintError: err.Error(),
		})
	}

	result, err := blueprint.Generate(ctx, s.ai, snap, mapping)
	if err != nil {
		log.Printf("blueprint generation failed for %s: %v", filename, err)
		return s.saveUpload(&store.WorkbookRecord{
			Filename:       filename,
			MimeType:       mimeType,
			Data:           data,
			BlueprintError: err.Error(),
		})
	}
	if result.AIError != "" {
		log.Printf("blueprint generation fell back to deterministic for %s: %s", filename, result.AIError)
	}

	return s.saveUpload(&store.WorkbookRecord{
		Filename:       filename,
		MimeType:       mimeType,
		Data:           data,
		Blueprint:      result.Blueprint,
		BlueprintError: result.AIError,
	})
}

// saveUpload 持久化上传记录并让解析器缓存失效
func (s *Service) saveUpload(rec *store.WorkbookRecord) (*model.WorkbookInfo, error) {
	if _, err := s.store.SaveWorkbook(rec); err != nil {
		return nil, err
	}
	s.cache.Invalidate()

	return &model.WorkbookInfo{
		ID:             rec.ID,
		Filename:       rec.Filename,
		MimeType:       rec.MimeType,
		UploadedAt:     rec.UploadedAt,
		BlueprintError: rec.BlueprintError,
	}, nil
}

// Bootstrap 启动态汇总：无工作簿时优雅降级而不是报错
func (s *Service) Bootstrap(ctx context.Context) (*model.Bootstrap, error) {
	settings, err := s.store.LoadSettings()
	if err != nil {
		return nil, err
	}
	mapping := effectiveMapping(settings)

	rec, err := s.store.LatestWorkbook()
	if err != nil {
		return nil, err
	}

	boot := &model.Bootstrap{
		Settings: settings,
		Mapping:  mapping,
	}
	if rec == nil {
		boot.SetupRequired = true
		boot.Message = "no workbook uploaded yet"
		boot.Defaults = resolveDefaults(settings, nil)
		return boot, nil
	}

	boot.WorkbookInfo = &model.WorkbookInfo{
		ID:             rec.ID,
		Filename:       rec.Filename,
		MimeType:       rec.MimeType,
		UploadedAt:     rec.UploadedAt,
		BlueprintError: rec.BlueprintError,
	}
	if rec.Blueprint == nil {
		boot.SetupRequired = true
		boot.Message = "stored workbook has no usable blueprint"
		if rec.BlueprintError != "" {
			boot.Message = rec.BlueprintError
		}
		boot.Defaults = resolveDefaults(settings, nil)
		return boot, nil
	}

	merged := blueprint.Merge(rec.Blueprint, blueprint.Sanitize(settings.LineOverrides))
	boot.Metadata = merged
	boot.Defaults = resolveDefaults(settings, merged)
	return boot, nil
}

// Calculate 一次报价解析
func (s *Service) Calculate(ctx context.Context, req model.CalculateRequest) (*model.CalculateResult, error) {
	resolver, _, _, settings, err := s.resolver()
	if err != nil {
		return nil, err
	}
	segment, tier := resolveRequest(req, settings)
	return resolver.Calculate(segment, tier, req.Selections)
}

// Export 计算并导出
func (s *Service) Export(ctx context.Context, req model.CalculateRequest) (*exporter.Export, error) {
	resolver, rec, merged, settings, err := s.resolver()
	if err != nil {
		return nil, err
	}
	segment, tier := resolveRequest(req, settings)

	result, err := resolver.Calculate(segment, tier, req.Selections)
	if err != nil {
		return nil, err
	}

	return exporter.Build(exporter.Request{
		Workbook:  rec.Data,
		Mapping:   effectiveMapping(settings),
		Blueprint: merged,
		Segment:   segment,
		PriceTier: tier,
		Details:   req.QuoteDetails,
		Result:    result,
	})
}

// Settings 当前管理员设置
func (s *Service) Settings() (*model.Settings, error) {
	return s.store.LoadSettings()
}

// SaveSettings 整体保存设置并让解析器缓存失效
func (s *Service) SaveSettings(settings *model.Settings) error {
	settings.LineOverrides = blueprint.Sanitize(settings.LineOverrides)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SaveSettings(settings); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// SaveMapping 深合并映射补丁并从存储的工作簿重新生成蓝图
//
// 空字段表示不覆盖；合并结果持久化后，蓝图必须按新映射重建，
// 否则行范围/列绑定变更不会反映到后续报价。
func (s *Service) SaveMapping(ctx context.Context, partial model.WorkbookMapping) (model.WorkbookMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.store.LoadSettings()
	if err != nil {
		return model.WorkbookMapping{}, err
	}

	merged := model.MergeWorkbookMappingInto(effectiveMapping(settings), &partial)
	settings.WorkbookMapping = &merged
	if err := s.store.SaveSettings(settings); err != nil {
		return model.WorkbookMapping{}, err
	}

	if err := s.regenerateBlueprint(ctx, merged); err != nil {
		return model.WorkbookMapping{}, err
	}
	s.cache.Invalidate()
	return merged, nil
}

// Overrides 当前行覆盖
func (s *Service) Overrides() ([]model.BlueprintOverride, error) {
	settings, err := s.store.LoadSettings()
	if err != nil {
		return nil, err
	}
	return settings.LineOverrides, nil
}

// SaveOverrides 清洗后整体替换行覆盖
func (s *Service) SaveOverrides(overrides []model.BlueprintOverride) ([]model.BlueprintOverride, error) {
	cleaned := blueprint.Sanitize(overrides)

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.store.LoadSettings()
	if err != nil {
		return nil, err
	}
	settings.LineOverrides = cleaned
	if err := s.store.SaveSettings(settings); err != nil {
		return nil, err
	}
	s.cache.Invalidate()
	return cleaned, nil
}

// regenerateBlueprint 映射变更后按新映射重建蓝图并写回工作簿记录
func (s *Service) regenerateBlueprint(ctx context.Context, mapping model.WorkbookMapping) error {
	rec, err := s.store.LatestWorkbook()
	if err != nil {
		return err
	}
	if rec == nil {
		// 还没有工作簿，映射先存着，上传时生效
		return nil
	}

	snap, err := snapshot.Extract(rec.Data, rec.Filename, s.snapshotOpts)
	if err != nil {
		return err
	}
	result, err := blueprint.Generate(ctx, s.ai, snap, mapping)
	if err != nil {
		return err
	}
	if result.AIError != "" {
		log.Printf("blueprint regeneration fell back to deterministic for %s: %s", rec.Filename, result.AIError)
	}
	return s.store.UpdateBlueprint(rec.ID, result.Blueprint, result.AIError)
}

// resolver 取或建当前解析器，连同其输入一起返回
func (s *Service) resolver() (pricing.Resolver, *store.WorkbookRecord, *model.Blueprint, *model.Settings, error) {
	settings, err := s.store.LoadSettings()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	mapping := effectiveMapping(settings)

	rec, err := s.store.LatestWorkbook()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if rec == nil {
		return nil, nil, nil, nil, fmt.Errorf("no workbook uploaded yet")
	}
	if rec.Blueprint == nil {
		return nil, nil, nil, nil, fmt.Errorf("stored workbook has no usable blueprint")
	}

	merged := blueprint.Merge(rec.Blueprint, blueprint.Sanitize(settings.LineOverrides))

	key := pricing.CacheKey(rec.UploadedAt, mapping)
	if cached, ok := s.cache.Get(key); ok {
		return cached, rec, merged, settings, nil
	}

	resolver, err := pricing.NewResolver(merged, mapping, rec.Data)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	s.cache.Put(key, resolver)
	return resolver, rec, merged, settings, nil
}

// effectiveMapping 系统默认映射叠加管理员保存的映射
func effectiveMapping(settings *model.Settings) model.WorkbookMapping {
	if settings != nil && settings.WorkbookMapping != nil {
		return model.MergeWorkbookMapping(settings.WorkbookMapping)
	}
	return model.DefaultWorkbookMapping()
}

// resolveDefaults 默认分级/档位：管理员设置 > 蓝图首个分级 > 系统兜底
func resolveDefaults(settings *model.Settings, bp *model.Blueprint) *model.Defaults {
	d := &model.Defaults{Segment: "Solo/Startup", PriceTier: "Midpoint"}
	if bp != nil && len(bp.Segments) > 0 {
		d.Segment = bp.Segments[0]
	}
	if settings != nil {
		if v := strings.TrimSpace(settings.DefaultSegment); v != "" {
			d.Segment = v
		}
		if v := strings.TrimSpace(settings.DefaultPriceTier); v != "" {
			d.PriceTier = v
		}
	}
	return d
}

// resolveRequest 本次请求的分级/档位：请求 > 设置默认 > 兜底
func resolveRequest(req model.CalculateRequest, settings *model.Settings) (segment, tier string) {
	d := resolveDefaults(settings, nil)
	segment, tier = d.Segment, d.PriceTier
	if v := strings.TrimSpace(req.Segment); v != "" {
		segment = v
	}
	if v := strings.TrimSpace(req.PriceTier); v != "" {
		tier = v
	}
	return segment, tier
}
