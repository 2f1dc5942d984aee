package exi

import (
	"fmt"

	"github.com/M4GNV5/iso15118/internal/message"
	"github.com/M4GNV5/iso15118/internal/xerr"
)

func writeResponseCode(w *bitWriter, rc message.ResponseCode) error {
	return codeOf(responseCodeTable, rc, responseCodeBits, w)
}

func readResponseCode(r *bitReader) (message.ResponseCode, error) {
	return decodeOf(responseCodeTable, responseCodeBits, r)
}

func encodeBody(w *bitWriter, msg message.Message) error {
	switch m := msg.(type) {
	case message.SessionSetupReq:
		w.WriteString(m.EVCCID)
	case message.SessionSetupRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteString(m.EVSEID)

	case message.ServiceDiscoveryReq:
		return codeOf(energyModeTable, m.RequestedEnergyMode, energyModeBits, w)
	case message.ServiceDiscoveryRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteByte(byte(len(m.PaymentOptions)))
		for _, po := range m.PaymentOptions {
			if err := codeOf(paymentOptionTable, po, paymentOptionBits, w); err != nil {
				return err
			}
		}
		w.WriteByte(byte(len(m.OfferedServices)))
		for _, svc := range m.OfferedServices {
			w.WriteUint16(uint16(svc.ServiceID))
			w.WriteByte(byte(len(svc.EnergyModes)))
			for _, em := range svc.EnergyModes {
				if err := codeOf(energyModeTable, em, energyModeBits, w); err != nil {
					return err
				}
			}
			w.WriteBool(svc.FreeService)
		}

	case message.ServiceDetailReq:
		w.WriteUint16(uint16(m.ServiceID))
	case message.ServiceDetailRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteUint16(uint16(m.ServiceID))

	case message.PaymentServiceSelectionReq:
		if err := codeOf(paymentOptionTable, m.PaymentOption, paymentOptionBits, w); err != nil {
			return err
		}
		w.WriteUint16(uint16(m.SelectedService))
	case message.PaymentServiceSelectionRes:
		return writeResponseCode(w, m.ResponseCode)

	case message.CertificateInstallationReq:
		writeCertChain(w, m.OEMChain)
		w.WriteVarBytes(m.CSRPayload)
	case message.CertificateInstallationRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		writeCertChain(w, m.ContractChain)
		w.WriteVarBytes(m.ContractSignedKey)

	case message.PaymentDetailsReq:
		writeCertChain(w, m.ContractChain)
		w.WriteString(m.EMAID)
	case message.PaymentDetailsRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteVarBytes(m.GenChallenge)

	case message.AuthorizationReq:
		w.WriteVarBytes(m.GenChallenge)
		w.WriteVarBytes(m.SignedFragment)
		w.WriteVarBytes(m.Signature)
	case message.AuthorizationRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteString(m.EVSEProcessing)

	case message.ChargeParameterDiscoveryReq:
		if err := codeOf(energyModeTable, m.RequestedMode, energyModeBits, w); err != nil {
			return err
		}
		if err := writePhysicalValue(w, m.MaxPower); err != nil {
			return err
		}
		if err := writePhysicalValue(w, m.MaxCurrent); err != nil {
			return err
		}
		w.WriteUint32(m.DepartureTime)
	case message.ChargeParameterDiscoveryRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteString(m.EVSEProcessing)
		if err := writeSchedules(w, m.Schedules); err != nil {
			return err
		}
		return codeOf(evseNotificationTable, m.EVSENotification, evseNotificationBits, w)

	case message.CableCheckReq:
		// no body fields
	case message.CableCheckRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		w.WriteString(m.EVSEProcessing)

	case message.PreChargeReq:
		if err := writePhysicalValue(w, m.TargetVoltage); err != nil {
			return err
		}
		return writePhysicalValue(w, m.TargetCurrent)
	case message.PreChargeRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		return writePhysicalValue(w, m.PresentVoltage)

	case message.PowerDeliveryReq:
		if err := codeOf(chargeProgressTable, m.Progress, chargeProgressBits, w); err != nil {
			return err
		}
		w.WriteUint16(uint16(m.ScheduleID))
	case message.PowerDeliveryRes:
		return writeResponseCode(w, m.ResponseCode)

	case message.CurrentDemandReq:
		if err := writePhysicalValue(w, m.TargetCurrent); err != nil {
			return err
		}
		if err := writePhysicalValue(w, m.TargetVoltage); err != nil {
			return err
		}
		w.WriteBool(m.ChargingComplete)
		w.WriteBool(m.BulkChargingComplete)
	case message.CurrentDemandRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		if err := writePhysicalValue(w, m.PresentVoltage); err != nil {
			return err
		}
		if err := writePhysicalValue(w, m.PresentCurrent); err != nil {
			return err
		}
		return codeOf(evseNotificationTable, m.EVSENotification, evseNotificationBits, w)

	case message.ChargingStatusReq:
		// no body fields
	case message.ChargingStatusRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		if err := codeOf(evseNotificationTable, m.EVSENotification, evseNotificationBits, w); err != nil {
			return err
		}
		w.WriteUint16(uint16(m.ScheduleID))

	case message.WeldingDetectionReq:
		return writePhysicalValue(w, m.PresentVoltage)
	case message.WeldingDetectionRes:
		if err := writeResponseCode(w, m.ResponseCode); err != nil {
			return err
		}
		return writePhysicalValue(w, m.PresentVoltage)

	case message.SessionStopReq:
		w.WriteBool(m.Terminate)
	case message.SessionStopRes:
		return writeResponseCode(w, m.ResponseCode)

	default:
		return xerr.New(xerr.Codec, fmt.Sprintf("no encoder for message type %T", msg))
	}
	return nil
}

func decodeBody(r *bitReader, d message.Dialect, h message.Header, kind message.Kind, isReq bool) (message.Message, error) {
	switch kind {
	case message.KindSessionSetup:
		if isReq {
			evccID, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			return message.SessionSetupReq{Header: h, D: d, EVCCID: evccID}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		evseID, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return message.SessionSetupRes{Header: h, D: d, ResponseCode: rc, EVSEID: evseID}, nil

	case message.KindServiceDiscovery:
		if isReq {
			mode, err := decodeOf(energyModeTable, energyModeBits, r)
			if err != nil {
				return nil, err
			}
			return message.ServiceDiscoveryReq{Header: h, D: d, RequestedEnergyMode: mode}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		nPay, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		payOpts := make([]message.PaymentOption, nPay)
		for i := range payOpts {
			payOpts[i], err = decodeOf(paymentOptionTable, paymentOptionBits, r)
			if err != nil {
				return nil, err
			}
		}
		nSvc, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		svcs := make([]message.OfferedService, nSvc)
		for i := range svcs {
			id, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			nModes, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			modes := make([]message.EnergyTransferMode, nModes)
			for j := range modes {
				modes[j], err = decodeOf(energyModeTable, energyModeBits, r)
				if err != nil {
					return nil, err
				}
			}
			free, err := r.ReadBool()
			if err != nil {
				return nil, err
			}
			svcs[i] = message.OfferedService{ServiceID: int(id), EnergyModes: modes, FreeService: free}
		}
		return message.ServiceDiscoveryRes{Header: h, D: d, ResponseCode: rc, PaymentOptions: payOpts, OfferedServices: svcs}, nil

	case message.KindServiceDetail:
		if isReq {
			id, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			return message.ServiceDetailReq{Header: h, D: d, ServiceID: int(id)}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		id, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		return message.ServiceDetailRes{Header: h, D: d, ResponseCode: rc, ServiceID: int(id)}, nil

	case message.KindPaymentServiceSelect:
		if isReq {
			po, err := decodeOf(paymentOptionTable, paymentOptionBits, r)
			if err != nil {
				return nil, err
			}
			svc, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			return message.PaymentServiceSelectionReq{Header: h, D: d, PaymentOption: po, SelectedService: int(svc)}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		return message.PaymentServiceSelectionRes{Header: h, D: d, ResponseCode: rc}, nil

	case message.KindCertificateInstall:
		if isReq {
			chain, err := readCertChain(r)
			if err != nil {
				return nil, err
			}
			csr, err := r.ReadVarBytes()
			if err != nil {
				return nil, err
			}
			return message.CertificateInstallationReq{Header: h, D: d, OEMChain: chain, CSRPayload: csr}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		chain, err := readCertChain(r)
		if err != nil {
			return nil, err
		}
		key, err := r.ReadVarBytes()
		if err != nil {
			return nil, err
		}
		return message.CertificateInstallationRes{Header: h, D: d, ResponseCode: rc, ContractChain: chain, ContractSignedKey: key}, nil

	case message.KindPaymentDetails:
		if isReq {
			chain, err := readCertChain(r)
			if err != nil {
				return nil, err
			}
			emaid, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			return message.PaymentDetailsReq{Header: h, D: d, ContractChain: chain, EMAID: emaid}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		challenge, err := r.ReadVarBytes()
		if err != nil {
			return nil, err
		}
		return message.PaymentDetailsRes{Header: h, D: d, ResponseCode: rc, GenChallenge: challenge}, nil

	case message.KindAuthorization:
		if isReq {
			challenge, err := r.ReadVarBytes()
			if err != nil {
				return nil, err
			}
			frag, err := r.ReadVarBytes()
			if err != nil {
				return nil, err
			}
			sig, err := r.ReadVarBytes()
			if err != nil {
				return nil, err
			}
			return message.AuthorizationReq{Header: h, D: d, GenChallenge: challenge, SignedFragment: frag, Signature: sig}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		proc, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return message.AuthorizationRes{Header: h, D: d, ResponseCode: rc, EVSEProcessing: proc}, nil

	case message.KindChargeParamDiscovery:
		if isReq {
			mode, err := decodeOf(energyModeTable, energyModeBits, r)
			if err != nil {
				return nil, err
			}
			maxPower, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			maxCurrent, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			dep, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			return message.ChargeParameterDiscoveryReq{Header: h, D: d, RequestedMode: mode, MaxPower: maxPower, MaxCurrent: maxCurrent, DepartureTime: dep}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		proc, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		schedules, err := readSchedules(r)
		if err != nil {
			return nil, err
		}
		notif, err := decodeOf(evseNotificationTable, evseNotificationBits, r)
		if err != nil {
			return nil, err
		}
		return message.ChargeParameterDiscoveryRes{Header: h, D: d, ResponseCode: rc, EVSEProcessing: proc, Schedules: schedules, EVSENotification: notif}, nil

	case message.KindCableCheck:
		if isReq {
			return message.CableCheckReq{Header: h, D: d}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		proc, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		return message.CableCheckRes{Header: h, D: d, ResponseCode: rc, EVSEProcessing: proc}, nil

	case message.KindPreCharge:
		if isReq {
			v, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			c, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			return message.PreChargeReq{Header: h, D: d, TargetVoltage: v, TargetCurrent: c}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		v, err := readPhysicalValue(r)
		if err != nil {
			return nil, err
		}
		return message.PreChargeRes{Header: h, D: d, ResponseCode: rc, PresentVoltage: v}, nil

	case message.KindPowerDelivery:
		if isReq {
			progress, err := decodeOf(chargeProgressTable, chargeProgressBits, r)
			if err != nil {
				return nil, err
			}
			sched, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			return message.PowerDeliveryReq{Header: h, D: d, Progress: progress, ScheduleID: int(sched)}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		return message.PowerDeliveryRes{Header: h, D: d, ResponseCode: rc}, nil

	case message.KindCurrentDemand:
		if isReq {
			current, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			voltage, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			complete, err := r.ReadBool()
			if err != nil {
				return nil, err
			}
			bulk, err := r.ReadBool()
			if err != nil {
				return nil, err
			}
			return message.CurrentDemandReq{Header: h, D: d, TargetCurrent: current, TargetVoltage: voltage, ChargingComplete: complete, BulkChargingComplete: bulk}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		voltage, err := readPhysicalValue(r)
		if err != nil {
			return nil, err
		}
		current, err := readPhysicalValue(r)
		if err != nil {
			return nil, err
		}
		notif, err := decodeOf(evseNotificationTable, evseNotificationBits, r)
		if err != nil {
			return nil, err
		}
		return message.CurrentDemandRes{Header: h, D: d, ResponseCode: rc, PresentVoltage: voltage, PresentCurrent: current, EVSENotification: notif}, nil

	case message.KindChargingStatus:
		if isReq {
			return message.ChargingStatusReq{Header: h, D: d}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		notif, err := decodeOf(evseNotificationTable, evseNotificationBits, r)
		if err != nil {
			return nil, err
		}
		sched, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		return message.ChargingStatusRes{Header: h, D: d, ResponseCode: rc, EVSENotification: notif, ScheduleID: int(sched)}, nil

	case message.KindWeldingDetection:
		if isReq {
			v, err := readPhysicalValue(r)
			if err != nil {
				return nil, err
			}
			return message.WeldingDetectionReq{Header: h, D: d, PresentVoltage: v}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		v, err := readPhysicalValue(r)
		if err != nil {
			return nil, err
		}
		return message.WeldingDetectionRes{Header: h, D: d, ResponseCode: rc, PresentVoltage: v}, nil

	case message.KindSessionStop:
		if isReq {
			term, err := r.ReadBool()
			if err != nil {
				return nil, err
			}
			return message.SessionStopReq{Header: h, D: d, Terminate: term}, nil
		}
		rc, err := readResponseCode(r)
		if err != nil {
			return nil, err
		}
		return message.SessionStopRes{Header: h, D: d, ResponseCode: rc}, nil

	default:
		return nil, xerr.New(xerr.Codec, fmt.Sprintf("no decoder for kind %s", kind))
	}
}
