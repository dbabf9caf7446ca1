//go:build tinygo

// RP2350 backend: adapted from the donor firmware's direct ROM-function
// OTA support (TBYB two-slot flash layout), restructured behind the
// partition.API verbs instead of hardcoded partition constants. The image
// state enum (§3) has no native ROM concept — it is persisted in a small
// footer at the end of each partition's flash region, written whenever
// SetState is called.
package partition

/*
#include <stdint.h>
#include <stdbool.h>
#include <stddef.h>

#define ROM_TABLE_CODE(c1, c2) ((c1) | ((c2) << 8))

#define ROM_FUNC_REBOOT       ROM_TABLE_CODE('R', 'B')
#define ROM_FUNC_EXPLICIT_BUY ROM_TABLE_CODE('E', 'B')
#define ROM_FUNC_GET_SYS_INFO ROM_TABLE_CODE('G', 'S')

#define BOOTROM_FUNC_TABLE_OFFSET   0x14
#define BOOTROM_WELL_KNOWN_PTR_SIZE 2
#define BOOTROM_TABLE_LOOKUP_OFFSET (BOOTROM_FUNC_TABLE_OFFSET + BOOTROM_WELL_KNOWN_PTR_SIZE)

#define RT_FLAG_FUNC_ARM_SEC    0x0004
#define RT_FLAG_FUNC_ARM_NONSEC 0x0010

#define REBOOT2_FLAG_REBOOT_TYPE_FLASH_UPDATE 0x4
#define REBOOT2_FLAG_NO_RETURN_ON_SUCCESS     0x100

#define SYS_INFO_BOOT_INFO 0x0040

#define ROM_FUNC_CONNECT_INTERNAL_FLASH ROM_TABLE_CODE('I', 'F')
#define ROM_FUNC_FLASH_EXIT_XIP         ROM_TABLE_CODE('E', 'X')
#define ROM_FUNC_FLASH_RANGE_ERASE      ROM_TABLE_CODE('R', 'E')
#define ROM_FUNC_FLASH_RANGE_PROGRAM    ROM_TABLE_CODE('R', 'P')
#define ROM_FUNC_FLASH_FLUSH_CACHE      ROM_TABLE_CODE('F', 'C')

#define XIP_BASE           0x10000000
#define PARTITION_A_OFFSET 0x2000
#define PARTITION_B_OFFSET 0x1F2000
#define PARTITION_MAX_SIZE 0x1F0000

#define FLASH_SECTOR_SIZE      4096
#define FLASH_SECTOR_ERASE_CMD 0x20

typedef void *(*rom_table_lookup_fn)(uint32_t code, uint32_t mask);
typedef int (*rom_reboot_fn)(uint32_t flags, uint32_t delay_ms, uint32_t p0, uint32_t p1);
typedef int (*rom_explicit_buy_fn)(uint8_t *buffer, uint32_t buffer_size);
typedef int (*rom_get_sys_info_fn)(uint32_t *out_buffer, uint32_t out_buffer_word_size, uint32_t flags);
typedef void (*flash_connect_internal_fn)(void);
typedef void (*flash_exit_xip_fn)(void);
typedef void (*flash_range_erase_fn)(uint32_t addr, size_t count, uint32_t block_size, uint8_t block_cmd);
typedef void (*flash_range_program_fn)(uint32_t addr, const uint8_t *data, size_t count);
typedef void (*flash_flush_cache_fn)(void);

static void *rom_func_lookup_inline(uint32_t code) {
    rom_table_lookup_fn rom_table_lookup =
        (rom_table_lookup_fn)(uintptr_t)*(uint16_t*)(BOOTROM_TABLE_LOOKUP_OFFSET);
    return rom_table_lookup(code, RT_FLAG_FUNC_ARM_SEC);
}

static int ota_confirm_partition(void) {
    rom_explicit_buy_fn func = (rom_explicit_buy_fn) rom_func_lookup_inline(ROM_FUNC_EXPLICIT_BUY);
    if (!func) return -1;
    uint32_t workarea[64];
    return func((uint8_t*)workarea, sizeof(workarea));
}

static int last_reboot_result = 0;

static void ota_reboot_to_partition(int partition) {
    uint32_t flash_offset = (partition == 0) ? PARTITION_A_OFFSET : PARTITION_B_OFFSET;
    uint32_t xip_addr = XIP_BASE + flash_offset;
    rom_reboot_fn func = (rom_reboot_fn) rom_func_lookup_inline(ROM_FUNC_REBOOT);
    if (!func) { last_reboot_result = -1; return; }
    last_reboot_result = func(
        REBOOT2_FLAG_REBOOT_TYPE_FLASH_UPDATE | REBOOT2_FLAG_NO_RETURN_ON_SUCCESS,
        1000, xip_addr, 0);
    if (last_reboot_result == 0) {
        for (volatile uint32_t i = 0; i < 20000000; i++) { }
        while(1) { __asm__("wfi"); }
    }
}

static int ota_get_current_partition(void) {
    rom_get_sys_info_fn func = (rom_get_sys_info_fn) rom_func_lookup_inline(ROM_FUNC_GET_SYS_INFO);
    if (!func) return 0;
    uint32_t buffer[5];
    int ret = func(buffer, 5, SYS_INFO_BOOT_INFO);
    if (ret < 0) return 0;
    if (!(buffer[0] & SYS_INFO_BOOT_INFO)) return 0;
    uint8_t partition = (buffer[1] >> 16) & 0xFF;
    if (partition == 0xFF) return 0;
    return (int)partition;
}

static uint32_t ota_partition_offset(int partition) {
    return (partition == 0) ? PARTITION_A_OFFSET : PARTITION_B_OFFSET;
}

static void ota_flash_write(uint32_t offset, const uint8_t *data, uint32_t len) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rom_func_lookup_inline(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip = (flash_exit_xip_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_program_fn program = (flash_range_program_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_RANGE_PROGRAM);
    flash_flush_cache_fn flush = (flash_flush_cache_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_FLUSH_CACHE);
    if (!connect || !exit_xip || !program || !flush) return;
    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");
    connect(); exit_xip(); program(offset, data, len); flush();
    __asm__ volatile ("msr primask, %0" : : "r" (status));
}

static void ota_flash_erase(uint32_t offset, uint32_t count) {
    flash_connect_internal_fn connect = (flash_connect_internal_fn)rom_func_lookup_inline(ROM_FUNC_CONNECT_INTERNAL_FLASH);
    flash_exit_xip_fn exit_xip = (flash_exit_xip_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_EXIT_XIP);
    flash_range_erase_fn erase = (flash_range_erase_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_RANGE_ERASE);
    flash_flush_cache_fn flush = (flash_flush_cache_fn)rom_func_lookup_inline(ROM_FUNC_FLASH_FLUSH_CACHE);
    if (!connect || !exit_xip || !erase || !flush) return;
    uint32_t status;
    __asm__ volatile ("mrs %0, primask" : "=r" (status));
    __asm__ volatile ("cpsid i");
    connect(); exit_xip(); erase(offset, count, FLASH_SECTOR_SIZE, FLASH_SECTOR_ERASE_CMD); flush();
    __asm__ volatile ("msr primask, %0" : : "r" (status));
}
*/
import "C"

import (
	"errors"
	"time"
	"unsafe"
)

const (
	partitionMaxSize = 0x1F0000
	sectorSize       = 4096
	// stateFooterOffset is the last sector of each partition, reserved for
	// the persisted ImageState byte. MaxImageSize is defined identically
	// in partition.go; device.FlashWriter checks fw_length against it
	// before ever calling Begin, and Write below double-checks the same
	// bound so a bypassed or miscounted caller can't scribble over the
	// footer sector or run past the partition.
	stateFooterOffset = partitionMaxSize - sectorSize
)

var ErrConfirmFailed = errors.New("partition: TBYB confirm failed")
var ErrImageTooLarge = errors.New("partition: write would overrun the state footer sector")

type rp2350Handle struct {
	target     Slot
	baseOffset uint32
	written    uint32
}

// rp2350API implements API. The RP2350 ROM has no primitive that selects
// a boot partition without also rebooting into it (TBYB's
// reboot_to_partition does both atomically), so SetBootPartition only
// records the target; Reboot performs the actual ROM call.
type rp2350API struct {
	pendingBoot *Slot
}

// NewRP2350 returns the partition.API backed by RP2350 ROM calls.
func NewRP2350() API {
	return &rp2350API{}
}

func slotOffset(s Slot) uint32 {
	if s == SlotA {
		return uint32(C.ota_partition_offset(0))
	}
	return uint32(C.ota_partition_offset(1))
}

func (a *rp2350API) Current() (Slot, error) {
	if int(C.ota_get_current_partition()) == 0 {
		return SlotA, nil
	}
	return SlotB, nil
}

func (a *rp2350API) Standby() (Slot, error) {
	cur, err := a.Current()
	if err != nil {
		return 0, err
	}
	if cur == SlotA {
		return SlotB, nil
	}
	return SlotA, nil
}

func (a *rp2350API) State(s Slot) (ImageState, error) {
	addr := uintptr(0x10000000 + slotOffset(s) + stateFooterOffset)
	b := *(*byte)(unsafe.Pointer(addr))
	if b > byte(StateAborted) {
		return StateNew, nil
	}
	return ImageState(b), nil
}

func (a *rp2350API) SetState(s Slot, state ImageState) error {
	offset := slotOffset(s) + stateFooterOffset
	C.ota_flash_erase(C.uint32_t(offset), C.uint32_t(sectorSize))
	buf := [1]byte{byte(state)}
	C.ota_flash_write(C.uint32_t(offset), (*C.uint8_t)(&buf[0]), 1)
	return nil
}

func (a *rp2350API) Begin(target Slot, size uint32) (Handle, error) {
	offset := slotOffset(target)
	C.ota_flash_erase(C.uint32_t(offset), C.uint32_t(stateFooterOffset))
	return &rp2350Handle{target: target, baseOffset: offset}, nil
}

func (a *rp2350API) Write(h Handle, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	hh := h.(*rp2350Handle)
	if uint64(hh.written)+uint64(len(data)) > stateFooterOffset {
		return ErrImageTooLarge
	}
	C.ota_flash_write(C.uint32_t(hh.baseOffset+hh.written), (*C.uint8_t)(&data[0]), C.uint32_t(len(data)))
	hh.written += uint32(len(data))
	return nil
}

func (a *rp2350API) End(h Handle) error {
	return nil
}

func (a *rp2350API) SetBootPartition(s Slot) error {
	slot := s
	a.pendingBoot = &slot
	return nil
}

func (a *rp2350API) Reboot(delay time.Duration) {
	time.Sleep(delay)
	target := C.ota_get_current_partition()
	if a.pendingBoot != nil {
		if *a.pendingBoot == SlotB {
			target = 1
		} else {
			target = 0
		}
	}
	C.ota_reboot_to_partition(target)
}
