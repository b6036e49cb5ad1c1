package filament

// ExtractionPrompt is the fixed instruction sent to the vision model
// together with the label photo. It pins down the six target fields, the
// exact JSON shape and the null convention so the interpreter has a
// predictable payload to work with.
const ExtractionPrompt = `请分析这张3D打印耗材标签图片，提取以下信息并以JSON格式返回：

1. brand (品牌): 如 "Bambu Lab", "Polymaker", "Sunlu", "eSUN", "Creality", "Prusa", "Hatchbox", "Overture" 等
2. material (材料类型): 如 "PLA", "PETG", "ABS", "PLA+", "TPU", "ASA", "PA", "PC" 等
3. colorName (颜色名称): 如 "Matte Charcoal", "Teal Blue", "Silk Gold", "Black", "White" 等
4. colorHex (颜色十六进制): 根据图片中的实际颜色或颜色描述推断，格式为 "#RRGGBB"，如 "#333333", "#008080", "#FFD700"
5. weight (重量): 以克(g)为单位，只返回数字字符串，如 "1000", "500", "250"
6. diameter (直径): 1.75 或 2.85，返回数字类型

如果某个信息无法识别或图片中没有相关信息，请返回 null。

请严格按照以下JSON格式返回，不要添加任何其他文字、说明或markdown代码块标记：
{
  "brand": "品牌名称或null",
  "material": "材料类型或null",
  "colorName": "颜色名称或null",
  "colorHex": "#颜色代码或null",
  "weight": "重量数字字符串或null",
  "diameter": 1.75或2.85或null
}
`
