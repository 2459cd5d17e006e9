package vocab

import (
	"fmt"
	"strings"

	"hermannm.dev/enumnames"
)

// ImageModality is the contrast type of an imaging acquisition.
type ImageModality uint8

const (
	ModalityT1Weighted        ImageModality = 1
	ModalityT2Weighted        ImageModality = 2
	ModalityDiffusionWeighted ImageModality = 3
	ModalityFlowWeighted      ImageModality = 4
	ModalityArterialSpin      ImageModality = 5
	ModalityEEG               ImageModality = 6
	ModalityFlair             ImageModality = 7
	ModalityPET               ImageModality = 8
)

var imageModalityNames = enumnames.NewMap(map[ImageModality]string{
	ModalityT1Weighted:        "nidm:T1Weighted",
	ModalityT2Weighted:        "nidm:T2Weighted",
	ModalityDiffusionWeighted: "nidm:DiffusionWeighted",
	ModalityFlowWeighted:      "nidm:FlowWeighted",
	ModalityArterialSpin:      "nidm:ArterialSpinLabeling",
	ModalityEEG:               "nidm:EEG",
	ModalityFlair:             "nidm:FlairWeighted",
	ModalityPET:               "nidm:PositronEmissionTomography",
})

var imageModalityLabels = map[ImageModality]string{
	ModalityT1Weighted:        "T1-weighted image",
	ModalityT2Weighted:        "T2-weighted image",
	ModalityDiffusionWeighted: "Diffusion-weighted image",
	ModalityFlowWeighted:      "Blood-Oxygen-Level Dependent image",
	ModalityArterialSpin:      "Arterial Spin Labeling",
	ModalityEEG:               "Electroencephalography",
	ModalityFlair:             "Fluid attenuated inversion recovery image",
	ModalityPET:               "Positron Emission Tomography",
}

var allImageModalities = []ImageModality{
	ModalityT1Weighted,
	ModalityT2Weighted,
	ModalityDiffusionWeighted,
	ModalityFlowWeighted,
	ModalityArterialSpin,
	ModalityEEG,
	ModalityFlair,
	ModalityPET,
}

func (modality ImageModality) IsValid() bool {
	return imageModalityNames.ContainsEnumValue(modality)
}

func (modality ImageModality) String() string {
	return imageModalityNames.GetNameOrFallback(modality, "[INVALID IMAGE MODALITY]")
}

func (modality ImageModality) MarshalJSON() ([]byte, error) {
	return imageModalityNames.MarshalToNameJSON(modality)
}

func (modality *ImageModality) UnmarshalJSON(bytes []byte) error {
	return imageModalityNames.UnmarshalFromNameJSON(bytes, modality)
}

func (modality ImageModality) Label() string {
	return imageModalityLabels[modality]
}

func (modality ImageModality) Term() Term {
	return MustParseTerm(modality.String())
}

func ParseImageModality(raw string) (ImageModality, error) {
	curie := CompactIRI(strings.TrimSpace(raw))
	for _, modality := range allImageModalities {
		if curie == modality.String() {
			return modality, nil
		}
	}
	return 0, fmt.Errorf("%w: unrecognized image modality '%s'", ErrInvalidTerm, raw)
}
