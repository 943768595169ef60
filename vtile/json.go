package vtile

//LayerInfo 图层的属性树表示
type LayerInfo struct {
	Name     string        `json:"name"`
	Extent   uint32        `json:"extent"`
	Version  uint32        `json:"version"`
	Features []FeatureInfo `json:"features"`
}

//FeatureInfo 要素的属性树表示,几何为原始命令流
type FeatureInfo struct {
	ID         uint64                 `json:"id"`
	Type       GeomType               `json:"type"`
	Geometry   []uint32               `json:"geometry"`
	Raster     []byte                 `json:"raster,omitempty"`
	Properties map[string]interface{} `json:"properties"`
}

//ToJSON 输出各图层的属性树
func (t *Tile) ToJSON() ([]LayerInfo, error) {
	s, err := t.view()
	if err != nil {
		return nil, err
	}
	out := make([]LayerInfo, 0, len(s.Layers))
	for _, l := range s.Layers {
		li := LayerInfo{
			Name:     l.Name,
			Extent:   l.Extent,
			Version:  l.Version,
			Features: make([]FeatureInfo, 0, len(l.Features)),
		}
		for _, f := range l.Features {
			fi := FeatureInfo{
				ID:         f.ID,
				Type:       f.Type,
				Geometry:   f.Geometry,
				Raster:     f.Raster,
				Properties: make(map[string]interface{}),
			}
			if fi.Geometry == nil {
				fi.Geometry = []uint32{}
			}
			for _, p := range l.Properties(f) {
				fi.Properties[p.Key] = p.Value.Interface()
			}
			li.Features = append(li.Features, fi)
		}
		out = append(out, li)
	}
	return out, nil
}
