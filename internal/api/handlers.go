package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/annel0/chunkloader/internal/chunk"
	"github.com/annel0/chunkloader/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// maxUploadBytes ограничение размера загружаемого NBT
const maxUploadBytes = 16 << 20

// WorldInfo краткая информация о мире
type WorldInfo struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
}

// parseChunk разбирает :x/:z; координаты должны помещаться в int32
func parseChunk(c *gin.Context) (x, z int32, ok bool) {
	px, errX := strconv.ParseInt(c.Param("x"), 10, 32)
	pz, errZ := strconv.ParseInt(c.Param("z"), 10, 32)
	if errX != nil || errZ != nil {
		respond(c, http.StatusBadRequest, "Координаты чанка должны быть целыми числами int32", nil)
		return 0, 0, false
	}
	return int32(px), int32(pz), true
}

// handleListWorlds возвращает миры с количеством чанков
func (rs *RestServer) handleListWorlds(c *gin.Context) {
	counts := rs.registry.Counts()
	worlds := make([]WorldInfo, 0, len(counts))
	for _, name := range rs.registry.Worlds() {
		worlds = append(worlds, WorldInfo{Name: name, Chunks: counts[name]})
	}

	respond(c, http.StatusOK, "Список миров", gin.H{
		"worlds": worlds,
		"total":  len(worlds),
	})
}

// handleListChunks возвращает координаты мира по возрастанию ключа
func (rs *RestServer) handleListChunks(c *gin.Context) {
	name := c.Param("world")
	coords := rs.registry.Chunks(name)
	if coords == nil {
		respond(c, http.StatusNotFound, "Мир не найден", nil)
		return
	}

	respond(c, http.StatusOK, "Чанки мира", gin.H{
		"world":  name,
		"chunks": coords,
		"total":  len(coords),
	})
}

func (rs *RestServer) handleChunkExists(c *gin.Context) {
	x, z, ok := parseChunk(c)
	if !ok {
		return
	}

	respond(c, http.StatusOK, "", gin.H{
		"world":  c.Param("world"),
		"chunk":  chunk.Coord{X: x, Z: z},
		"exists": rs.registry.HasChunk(c.Param("world"), x, z),
	})
}

// handleAddChunk: 201 если добавлен, 200 если уже был
func (rs *RestServer) handleAddChunk(c *gin.Context) {
	x, z, ok := parseChunk(c)
	if !ok {
		return
	}

	data := gin.H{"world": c.Param("world"), "chunk": chunk.Coord{X: x, Z: z}}
	if rs.registry.AddChunk(c.Param("world"), x, z) {
		respond(c, http.StatusCreated, "Чанк добавлен", data)
		return
	}
	respond(c, http.StatusOK, "Чанк уже в наборе", data)
}

// handleRemoveChunk: 200 если удалён, 404 если его не было
func (rs *RestServer) handleRemoveChunk(c *gin.Context) {
	x, z, ok := parseChunk(c)
	if !ok {
		return
	}

	if !rs.registry.RemoveChunk(c.Param("world"), x, z) {
		respond(c, http.StatusNotFound, "Чанк не найден", nil)
		return
	}
	respond(c, http.StatusOK, "Чанк удалён", gin.H{"world": c.Param("world"), "chunk": chunk.Coord{X: x, Z: z}})
}

func (rs *RestServer) handleDropWorld(c *gin.Context) {
	if !rs.registry.DropWorld(c.Param("world")) {
		respond(c, http.StatusNotFound, "Мир не найден", nil)
		return
	}
	respond(c, http.StatusOK, "Мир удалён", nil)
}

// handleExportNBT отдаёт набор мира в формате NBT
func (rs *RestServer) handleExportNBT(c *gin.Context) {
	name := c.Param("world")
	set, ok := rs.registry.Snapshot(name)
	if !ok {
		respond(c, http.StatusNotFound, "Мир не найден", nil)
		return
	}

	data, err := rs.codec.Encode(set)
	if err != nil {
		rs.log.Error("Ошибка сериализации мира %s: %v", name, err)
		respond(c, http.StatusInternalServerError, "Ошибка сериализации", nil)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + ".nbt"}))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// handleImportNBT заменяет набор мира загруженным NBT (gzip или без сжатия)
func (rs *RestServer) handleImportNBT(c *gin.Context) {
	name := c.Param("world")
	_, span := observability.Tracer().Start(c.Request.Context(), "chunkset.import")
	defer span.End()
	span.SetAttributes(attribute.String("world", name))

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes))
	if err != nil {
		respond(c, http.StatusRequestEntityTooLarge, "Слишком большой файл", nil)
		return
	}

	set, err := rs.codec.Decode(data)
	if err != nil {
		observability.SpanError(span, err, "malformed tag")
		if errors.Is(err, chunk.ErrMalformedTag) {
			respond(c, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	set.SetName(name)
	if err := rs.registry.Replace(set); err != nil {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	span.SetAttributes(attribute.Int("chunks", set.Len()))
	rs.log.Info("📥 Мир %s заменён: %d чанков", name, set.Len())
	respond(c, http.StatusOK, "Набор заменён", WorldInfo{Name: name, Chunks: set.Len()})
}

// handleSave немедленно сохраняет изменённые миры
func (rs *RestServer) handleSave(c *gin.Context) {
	ctx, span := observability.Tracer().Start(c.Request.Context(), "chunkset.save")
	defer span.End()

	if rs.provider == nil {
		respond(c, http.StatusServiceUnavailable, "Хранилище не настроено", nil)
		return
	}

	dirty := rs.registry.Dirty()
	span.SetAttributes(attribute.Int("worlds", len(dirty)))

	if err := rs.registry.Save(ctx, rs.provider); err != nil {
		observability.SpanError(span, err, "save failed")
		rs.log.Error("❌ Ошибка сохранения: %v", err)
		respond(c, http.StatusInternalServerError, "Ошибка сохранения", nil)
		return
	}

	respond(c, http.StatusOK, "Сохранено", gin.H{"worlds": dirty})
}
